package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nodeagent/internal/pkg/protocol"
)

type fakeSource struct {
	systemErr error
	unitsErr  error
	units     []protocol.UnitMetrics
}

func (f *fakeSource) System(context.Context) (protocol.SystemMetrics, error) {
	if f.systemErr != nil {
		return protocol.SystemMetrics{CPUUsage: 99}, f.systemErr
	}
	return protocol.SystemMetrics{CPUUsage: 12.5, MemoryTotal: 1024}, nil
}

func (f *fakeSource) Units(context.Context) ([]protocol.UnitMetrics, error) {
	if f.unitsErr != nil {
		return nil, f.unitsErr
	}
	return f.units, nil
}

type collectingSink struct {
	mu        sync.Mutex
	snapshots []protocol.TelemetrySnapshot
	notify    chan struct{}
}

func newCollectingSink() *collectingSink {
	return &collectingSink{notify: make(chan struct{}, 64)}
}

func (s *collectingSink) PublishTelemetry(_ context.Context, snap protocol.TelemetrySnapshot) bool {
	s.mu.Lock()
	s.snapshots = append(s.snapshots, snap)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return true
}

func (s *collectingSink) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.notify:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for snapshot %d", i+1)
		}
	}
}

func TestPublisher_Collect(t *testing.T) {
	nick := "alpha"
	src := &fakeSource{units: []protocol.UnitMetrics{{Name: "creditcoin-validator-1", Nickname: &nick}}}
	p := NewPublisher(src, "host-1", time.Second)

	snap := p.Collect(context.Background())
	if snap.AgentID != "host-1" {
		t.Errorf("agent id: got %q", snap.AgentID)
	}
	if snap.System.CPUUsage != 12.5 {
		t.Errorf("cpu: got %v", snap.System.CPUUsage)
	}
	if len(snap.Units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(snap.Units))
	}

	latest, ok := p.Latest()
	if !ok || latest.CapturedAt != snap.CapturedAt {
		t.Error("Latest did not return the collected snapshot")
	}
}

func TestPublisher_FaultsDegradeToEmpty(t *testing.T) {
	src := &fakeSource{systemErr: errors.New("proc unavailable"), unitsErr: errors.New("docker down")}
	p := NewPublisher(src, "host-1", time.Second)

	snap := p.Collect(context.Background())
	if snap.System != (protocol.SystemMetrics{}) {
		t.Errorf("system metrics should be zeroed on failure, got %+v", snap.System)
	}
	if snap.Units == nil || len(snap.Units) != 0 {
		t.Errorf("units should be an empty list, got %#v", snap.Units)
	}
}

func TestPublisher_TimestampNeverDecreases(t *testing.T) {
	times := []time.Time{time.Unix(200, 0), time.Unix(100, 0), time.Unix(300, 0)}
	i := 0
	clock := func() time.Time {
		at := times[i]
		if i < len(times)-1 {
			i++
		}
		return at
	}
	p := NewPublisher(&fakeSource{}, "h", time.Second, WithPublisherClock(clock))

	var last int64
	for n := 0; n < 3; n++ {
		snap := p.Collect(context.Background())
		if snap.CapturedAt < last {
			t.Fatalf("timestamp went backwards: %d < %d", snap.CapturedAt, last)
		}
		last = snap.CapturedAt
	}
	if last != 300 {
		t.Errorf("final timestamp: want 300, got %d", last)
	}
}

func TestPublisher_RunPublishesImmediatelyThenTicks(t *testing.T) {
	p := NewPublisher(&fakeSource{}, "h", 20*time.Millisecond)
	sink := newCollectingSink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, sink) }()

	sink.wait(t, 3)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestPublisher_RunRejectsZeroInterval(t *testing.T) {
	p := NewPublisher(&fakeSource{}, "h", 0)
	if err := p.Run(context.Background(), SinkFunc(func(context.Context, protocol.TelemetrySnapshot) bool { return true })); err == nil {
		t.Error("expected error for zero interval")
	}
}
