package reporter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"

	"nodeagent/internal/pkg/protocol"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1024, "1.00KB"},
		{1536, "1.50KB"},
		{5 * 1024 * 1024, "5.00MB"},
		{3 * 1024 * 1024 * 1024, "3.00GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMemory(t *testing.T) {
	if got := FormatMemory(256*1024*1024, 512*1024*1024); got != "256MB / 512MB" {
		t.Errorf("small limit: %q", got)
	}
	if got := FormatMemory(1024*1024*1024, 4*1024*1024*1024); got != "1.00GB / 4.00GB" {
		t.Errorf("large limit: %q", got)
	}
	// 恰好1GB仍按MB显示
	if got := FormatMemory(0, 1024*1024*1024); got != "0MB / 1024MB" {
		t.Errorf("boundary: %q", got)
	}
}

func TestFormatUptime(t *testing.T) {
	if got := FormatUptime(2*86400 + 3*3600 + 4*60 + 59); got != "2d 3h 4m" {
		t.Errorf("FormatUptime = %q", got)
	}
}

func TestColorFor(t *testing.T) {
	if colorFor(80.1) != pterm.FgRed || colorFor(80) != pterm.FgYellow || colorFor(50) != pterm.FgGreen {
		t.Error("Unexpected colour thresholds")
	}
}

func testSnapshot() protocol.TelemetrySnapshot {
	nick := "Creditcoin 2.0 Node 1"
	return protocol.TelemetrySnapshot{
		AgentID:    "server1",
		CapturedAt: 1700000000,
		System: protocol.SystemMetrics{
			HostName: "validator-01", CPUModel: "AMD EPYC", CPUUsage: 12.5, CPUCores: 8,
			MemoryTotal: 16 * 1024 * 1024 * 1024, MemoryUsed: 4 * 1024 * 1024 * 1024, MemoryUsedPercent: 25,
			DiskTotal: 100, DiskUsed: 50, Uptime: 90061,
		},
		Units: []protocol.UnitMetrics{
			{Name: "node1", CPUUsage: 3.5, MemoryUsage: 100 * 1024 * 1024, MemoryLimit: 512 * 1024 * 1024, MemoryPercent: 19.53, NetworkRx: 2048, NetworkTx: 10, Nickname: &nick},
		},
	}
}

func TestConsoleReporter_Report(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	r := NewConsoleReporter(&buf, 5*time.Second, false)
	if err := r.Report(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"CREDITCOIN NODE RESOURCE MONITOR",
		"Host: validator-01",
		"CPU usage: 12.50% (cores: 8)",
		"Memory: 4.00GB / 16.00GB (25.00%)",
		"Uptime: 1d 1h 1m",
		"node1",
		"100MB / 512MB",
		"2.00KB/10B",
		"interval: 5s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, clearScreen) {
		t.Error("Clear disabled but screen cleared")
	}
}

func TestConsoleReporter_NoUnits(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var buf bytes.Buffer
	snap := testSnapshot()
	snap.Units = nil
	if err := NewConsoleReporter(&buf, time.Second, true).Report(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), clearScreen) {
		t.Error("Expected clear screen prefix")
	}
	if !strings.Contains(buf.String(), "No units are being monitored.") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}

func TestCsvReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.csv")
	r, err := NewCsvReporter(path)
	if err != nil {
		t.Fatalf("NewCsvReporter failed: %v", err)
	}
	if err := r.Report(context.Background(), testSnapshot()); err != nil {
		t.Fatal(err)
	}
	r.Close()

	// 重新打开不再重复写表头
	r, err = NewCsvReporter(path)
	if err != nil {
		t.Fatal(err)
	}
	r.Report(context.Background(), testSnapshot())
	r.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(data), "\xEF\xBB\xBF")), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "timestamp,server_id,name") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "server1,node1,Creditcoin 2.0 Node 1,3.50") {
		t.Errorf("Unexpected row %q", lines[1])
	}
}

type stubReporter struct {
	calls int
	err   error
}

func (s *stubReporter) Report(context.Context, protocol.TelemetrySnapshot) error {
	s.calls++
	return s.err
}

func TestMultiReporter(t *testing.T) {
	failing := &stubReporter{err: errors.New("disk full")}
	ok := &stubReporter{}
	m := NewMultiReporter(failing, ok)
	if err := m.Report(context.Background(), testSnapshot()); err == nil || err.Error() != "disk full" {
		t.Errorf("Expected first error, got %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("All reporters should be called: %d %d", failing.calls, ok.calls)
	}
}
