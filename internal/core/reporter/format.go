package reporter

import (
	"fmt"

	"github.com/pterm/pterm"
)

const (
	kb = 1024.0
	mb = kb * 1024.0
	gb = mb * 1024.0
)

// FormatBytes 字节数转为 B/KB/MB/GB
func FormatBytes(b uint64) string {
	v := float64(b)
	switch {
	case v >= gb:
		return fmt.Sprintf("%.2fGB", v/gb)
	case v >= mb:
		return fmt.Sprintf("%.2fMB", v/mb)
	case v >= kb:
		return fmt.Sprintf("%.2fKB", v/kb)
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// FormatMemory 限额超过1GB时按GB显示，否则按MB取整
func FormatMemory(usage, limit uint64) string {
	usageMB := float64(usage) / mb
	limitMB := float64(limit) / mb
	if limitMB > 1024 {
		return fmt.Sprintf("%.2fGB / %.2fGB", usageMB/1024, limitMB/1024)
	}
	return fmt.Sprintf("%.0fMB / %.0fMB", usageMB, limitMB)
}

// FormatUptime 秒数转为 Xd Yh Zm
func FormatUptime(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

// colorFor >80 红色，>50 黄色，其余绿色
func colorFor(value float64) pterm.Color {
	switch {
	case value > 80:
		return pterm.FgRed
	case value > 50:
		return pterm.FgYellow
	default:
		return pterm.FgGreen
	}
}

func toGB(b uint64) float64 {
	return float64(b) / gb
}
