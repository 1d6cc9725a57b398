package reporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm" // 引入 pterm 库用于控制台输出

	"nodeagent/internal/pkg/protocol"
)

const clearScreen = "\033[2J\033[H"

// ConsoleReporter 控制台输出，每次输出前清屏
type ConsoleReporter struct {
	out      io.Writer
	interval time.Duration
	clear    bool
}

// NewConsoleReporter out 为空时输出到标准输出
func NewConsoleReporter(out io.Writer, interval time.Duration, clear bool) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{out: out, interval: interval, clear: clear}
}

// unitTable 节点表格数据
type unitTable []protocol.UnitMetrics

func (t unitTable) Headers() []string {
	return []string{"Node", "CPU%", "Memory", "Memory%", "Network RX/TX"}
}

func (t unitTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, u := range t {
		rows = append(rows, []string{
			u.Name,
			colorFor(u.CPUUsage).Sprintf("%.2f", u.CPUUsage),
			FormatMemory(u.MemoryUsage, u.MemoryLimit),
			colorFor(u.MemoryPercent).Sprintf("%.2f", u.MemoryPercent),
			FormatBytes(u.NetworkRx) + "/" + FormatBytes(u.NetworkTx),
		})
	}
	return rows
}

func (r *ConsoleReporter) Report(ctx context.Context, snap protocol.TelemetrySnapshot) error {
	var b strings.Builder
	if r.clear {
		b.WriteString(clearScreen)
	}

	now := time.Now()
	sys := snap.System
	fmt.Fprintf(&b, "%s    %s\n\n", pterm.Bold.Sprint("CREDITCOIN NODE RESOURCE MONITOR"), now.Format("2006-01-02 15:04:05"))

	b.WriteString(pterm.FgYellow.Sprint("=== System ===") + "\n")
	fmt.Fprintf(&b, "Host: %s\n", sys.HostName)
	fmt.Fprintf(&b, "CPU model: %s\n", sys.CPUModel)
	fmt.Fprintf(&b, "CPU usage: %s (cores: %d)\n", colorFor(float64(sys.CPUUsage)).Sprintf("%.2f%%", sys.CPUUsage), sys.CPUCores)
	fmt.Fprintf(&b, "Memory: %s\n", colorFor(float64(sys.MemoryUsedPercent)).Sprintf("%.2fGB / %.2fGB (%.2f%%)",
		toGB(sys.MemoryUsed), toGB(sys.MemoryTotal), sys.MemoryUsedPercent))
	fmt.Fprintf(&b, "Swap: %.2fGB / %.2fGB\n", toGB(sys.SwapUsed), toGB(sys.SwapTotal))

	var diskPercent float64
	if sys.DiskTotal > 0 {
		diskPercent = float64(sys.DiskUsed) / float64(sys.DiskTotal) * 100
	}
	fmt.Fprintf(&b, "Disk: %s\n", colorFor(diskPercent).Sprintf("%.2fGB / %.2fGB (%.2f%%)",
		toGB(sys.DiskUsed), toGB(sys.DiskTotal), diskPercent))
	fmt.Fprintf(&b, "Uptime: %s\n\n", FormatUptime(sys.Uptime))

	b.WriteString(pterm.FgYellow.Sprint("=== Units ===") + "\n")
	if len(snap.Units) == 0 {
		b.WriteString("No units are being monitored.\n")
	} else {
		table, err := renderTable(unitTable(snap.Units))
		if err != nil {
			return err
		}
		b.WriteString(table)
	}

	fmt.Fprintf(&b, "\n%s\n", pterm.FgCyan.Sprintf("[%s] monitoring locally... (interval: %ds)", now.Format("15:04:05"), int(r.interval.Seconds())))

	_, err := io.WriteString(r.out, b.String())
	return err
}

func renderTable(data TabularData) (string, error) {
	tableData := pterm.TableData{data.Headers()}
	tableData = append(tableData, data.Rows()...)

	out, err := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false). // 简洁风格
		WithData(tableData).
		Srender()
	if err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	return out + "\n", nil
}
