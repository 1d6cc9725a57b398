package reporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"nodeagent/internal/pkg/protocol"
)

var csvHeaders = []string{
	"timestamp", "server_id", "name", "nickname", "cpu_usage",
	"memory_usage", "memory_limit", "memory_percent", "network_rx", "network_tx",
}

// CsvReporter 将每个节点的指标追加写入 CSV 文件，便于本地模式下留存记录
type CsvReporter struct {
	FilePath string
	mu       sync.Mutex
	file     *os.File
	writer   *csv.Writer
}

// NewCsvReporter 打开或创建文件，新文件写入 BOM 与表头
func NewCsvReporter(filePath string) (*CsvReporter, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat csv file: %w", err)
	}

	r := &CsvReporter{FilePath: filePath, file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		// 写入 UTF-8 BOM，防止 Excel 打开乱码
		f.WriteString("\xEF\xBB\xBF")
		if err := r.writer.Write(csvHeaders); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
		r.writer.Flush()
	}
	return r, nil
}

func (r *CsvReporter) Report(ctx context.Context, snap protocol.TelemetrySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := time.Unix(snap.CapturedAt, 0).Format(time.RFC3339)
	for _, u := range snap.Units {
		nickname := ""
		if u.Nickname != nil {
			nickname = *u.Nickname
		}
		row := []string{
			ts, snap.AgentID, u.Name, nickname,
			strconv.FormatFloat(u.CPUUsage, 'f', 2, 64),
			strconv.FormatUint(u.MemoryUsage, 10),
			strconv.FormatUint(u.MemoryLimit, 10),
			strconv.FormatFloat(u.MemoryPercent, 'f', 2, 64),
			strconv.FormatUint(u.NetworkRx, 10),
			strconv.FormatUint(u.NetworkTx, 10),
		}
		if err := r.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
	}
	r.writer.Flush()
	return r.writer.Error()
}

// Close 刷新并关闭文件
func (r *CsvReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writer.Flush()
	return r.file.Close()
}
