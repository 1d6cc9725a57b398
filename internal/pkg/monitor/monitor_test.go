package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const statsNode1 = `{
  "cpu_stats": {"cpu_usage": {"total_usage": 400}, "system_cpu_usage": 2000, "online_cpus": 4},
  "precpu_stats": {"cpu_usage": {"total_usage": 200}, "system_cpu_usage": 1000},
  "memory_stats": {"usage": 512, "limit": 2048},
  "networks": {"eth0": {"rx_bytes": 100, "tx_bytes": 50}, "eth1": {"rx_bytes": 1, "tx_bytes": 2}}
}`

func newFakeDocker(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/containers/json":
			if !strings.Contains(r.URL.Query().Get("filters"), "running") {
				t.Errorf("Expected running filter, got %q", r.URL.RawQuery)
			}
			w.Write([]byte(`[
			  {"Id":"aaa","Names":["/node1"],"State":"running","Status":"Up 2 hours"},
			  {"Id":"bbb","Names":["/3node0"],"State":"running","Status":"Up 1 hour"},
			  {"Id":"ccc","Names":["/postgres"],"State":"running","Status":"Up 5 days"}
			]`))
		case r.URL.Path == "/containers/aaa/stats":
			if r.URL.Query().Get("stream") != "false" {
				t.Errorf("Expected stream=false")
			}
			w.Write([]byte(statsNode1))
		case r.URL.Path == "/containers/bbb/stats":
			http.Error(w, "gone", http.StatusNotFound)
		default:
			w.Write([]byte(`{}`))
		}
	}))
}

func TestUnitCollector_Units(t *testing.T) {
	srv := newFakeDocker(t)
	defer srv.Close()

	uc := NewUnitCollector(newDockerClientWithHTTP(srv.URL, srv.Client()), []string{"node", " "})
	units, err := uc.Units(context.Background())
	if err != nil {
		t.Fatalf("Units failed: %v", err)
	}
	// postgres 被过滤，3node0 统计失败被跳过
	if len(units) != 1 {
		t.Fatalf("Expected 1 unit, got %d: %+v", len(units), units)
	}
	u := units[0]
	if u.Name != "node1" || u.ID != "aaa" || u.Status != "Up 2 hours" {
		t.Errorf("Unexpected identity: %+v", u)
	}
	if u.CPUUsage != 80 {
		t.Errorf("cpu_usage = %v, want 80", u.CPUUsage)
	}
	if u.MemoryPercent != 25 || u.MemoryUsage != 512 || u.MemoryLimit != 2048 {
		t.Errorf("Unexpected memory: %+v", u)
	}
	if u.NetworkRx != 101 || u.NetworkTx != 52 {
		t.Errorf("Unexpected network: rx=%d tx=%d", u.NetworkRx, u.NetworkTx)
	}
	if u.Nickname == nil || *u.Nickname != "Creditcoin 2.0 Node 1" {
		t.Errorf("Unexpected nickname: %v", u.Nickname)
	}
}

func TestUnitCollector_EmptyFilterTakesAll(t *testing.T) {
	srv := newFakeDocker(t)
	defer srv.Close()

	units, err := NewUnitCollector(newDockerClientWithHTTP(srv.URL, srv.Client()), nil).Units(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	if strings.Join(names, ",") != "node1,postgres" {
		t.Errorf("Unexpected units %v", names)
	}
}

func TestUnitCollector_APIUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "daemon down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewUnitCollector(newDockerClientWithHTTP(srv.URL, srv.Client()), nil).Units(context.Background())
	if !errors.Is(err, ErrNoUnitData) {
		t.Errorf("Expected ErrNoUnitData, got %v", err)
	}
}

func TestNickname(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"3node0", "Creditcoin 3.0 Node 0"},
		{"3node12", "Creditcoin 3.0 Node 12"},
		{"node1", "Creditcoin 2.0 Node 1"},
		{"mynode1", ""},
		{"postgres", ""},
	}
	for _, tt := range tests {
		got := Nickname(tt.name)
		if tt.want == "" {
			if got != nil {
				t.Errorf("Nickname(%q) = %q, want nil", tt.name, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("Nickname(%q) = %v, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCPUPercent_NonPositiveDelta(t *testing.T) {
	s := &dockerStats{}
	s.CPUStats.CPUUsage.TotalUsage = 100
	s.PreCPUStats.CPUUsage.TotalUsage = 100
	s.CPUStats.SystemCPUUsage = 2000
	s.PreCPUStats.SystemCPUUsage = 1000
	if got := CPUPercent(s); got != 0 {
		t.Errorf("Expected 0 for zero cpu delta, got %v", got)
	}
	s.CPUStats.CPUUsage.TotalUsage = 150
	if got := CPUPercent(s); got != 5 {
		t.Errorf("Expected online cpus to default to 1, got %v", got)
	}
}

func TestNewDockerClient_Schemes(t *testing.T) {
	tests := []struct {
		host    string
		base    string
		wantErr bool
	}{
		{"", "http://docker", false},
		{"unix:///run/user/1000/docker.sock", "http://docker", false},
		{"tcp://10.0.0.2:2375", "http://10.0.0.2:2375", false},
		{"http://localhost:2375/", "http://localhost:2375", false},
		{"npipe:////./pipe/docker_engine", "", true},
	}
	for _, tt := range tests {
		c, err := NewDockerClient(tt.host)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.host)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.host, err)
			continue
		}
		if c.baseURL != tt.base {
			t.Errorf("%q: base = %q, want %q", tt.host, c.baseURL, tt.base)
		}
	}
}

func TestHostCollector_System(t *testing.T) {
	m, err := NewHostCollector("").System(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable in this environment: %v", err)
	}
	if m.CPUCores <= 0 {
		t.Errorf("cpu_cores should be positive, got %d", m.CPUCores)
	}
	if m.MemoryTotal > 0 && m.MemoryUsed > m.MemoryTotal {
		t.Errorf("memory used %d exceeds total %d", m.MemoryUsed, m.MemoryTotal)
	}
}
