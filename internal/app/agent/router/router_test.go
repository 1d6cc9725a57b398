package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"nodeagent/internal/app/agent/middleware"
	"nodeagent/internal/handler/status"
	"nodeagent/internal/pkg/journal"
	"nodeagent/internal/pkg/protocol"
	"nodeagent/internal/pkg/version"
)

type fakeProvider struct {
	snapshot   *protocol.TelemetrySnapshot
	entries    []journal.Entry
	journalErr error
	gotLimit   int
}

func (f *fakeProvider) Status() status.AgentStatus {
	return status.AgentStatus{AgentID: "host-1", Mode: "remote", SessionState: "Connected", InFlight: 2}
}

func (f *fakeProvider) LatestSnapshot() (protocol.TelemetrySnapshot, bool) {
	if f.snapshot == nil {
		return protocol.TelemetrySnapshot{}, false
	}
	return *f.snapshot, true
}

func (f *fakeProvider) RecentCommands(_ context.Context, limit int) ([]journal.Entry, error) {
	f.gotLimit = limit
	return f.entries, f.journalErr
}

func newTestRouter(p status.Provider) *Router {
	return NewRouter(&RouterConfig{Mode: gin.TestMode}, p)
}

func doGet(r *Router, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.GetEngine().ServeHTTP(w, req)
	return w
}

func TestHealthRoutes(t *testing.T) {
	r := newTestRouter(&fakeProvider{})
	for _, path := range []string{"/health", "/ping", "/version"} {
		if w := doGet(r, path); w.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, w.Code)
		}
	}
}

func TestVersionRoute(t *testing.T) {
	w := doGet(newTestRouter(&fakeProvider{}), "/version")
	var body struct {
		Data version.Info `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.ProtocolVersion != version.ProtocolVersion || body.Data.UserAgent != version.GetUserAgent() {
		t.Errorf("unexpected version info: %+v", body.Data)
	}
}

func TestStatusRoute(t *testing.T) {
	r := newTestRouter(&fakeProvider{})
	w := doGet(r, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		Data status.AgentStatus `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.SessionState != "Connected" || body.Data.InFlight != 2 {
		t.Errorf("unexpected status: %+v", body.Data)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("request id header missing")
	}
}

func TestSnapshotRoute(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRouter(p)
	if w := doGet(r, "/api/v1/snapshot"); w.Code != http.StatusNotFound {
		t.Errorf("before first collection: want 404, got %d", w.Code)
	}

	p.snapshot = &protocol.TelemetrySnapshot{AgentID: "host-1", CapturedAt: 42}
	w := doGet(r, "/api/v1/snapshot")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data["server_id"] != "host-1" {
		t.Errorf("server_id: %v", body.Data["server_id"])
	}
	if units, ok := body.Data["containers"].([]interface{}); !ok || len(units) != 0 {
		t.Errorf("containers should be an empty list, got %v", body.Data["containers"])
	}
}

func TestCommandsRoute(t *testing.T) {
	p := &fakeProvider{entries: []journal.Entry{{CommandID: "c1", Status: protocol.StatusCompleted}}}
	r := newTestRouter(p)

	w := doGet(r, "/api/v1/commands?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if p.gotLimit != 5 {
		t.Errorf("limit: want 5, got %d", p.gotLimit)
	}

	doGet(r, "/api/v1/commands?limit=100000")
	if p.gotLimit != 500 {
		t.Errorf("limit should be capped at 500, got %d", p.gotLimit)
	}

	if w := doGet(r, "/api/v1/commands?limit=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid limit: want 400, got %d", w.Code)
	}

	p.journalErr = errors.New("redis down")
	if w := doGet(r, "/api/v1/commands"); w.Code != http.StatusInternalServerError {
		t.Errorf("journal failure: want 500, got %d", w.Code)
	}
}
