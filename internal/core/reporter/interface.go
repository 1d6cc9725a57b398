/**
 * 遥测本地输出接口定义
 * @author: Sun977
 * @date: 2026.01.21
 * @description: 定义遥测快照的本地输出接口，解耦控制台与文件输出，采集端不可达时由本地输出接管
 */

package reporter

import (
	"context"

	"nodeagent/internal/pkg/protocol"
)

// TabularData 是一个可以被渲染为表格的数据接口
type TabularData interface {
	Headers() []string
	Rows() [][]string
}

// Reporter 定义快照输出的行为
type Reporter interface {
	// Report 输出一次遥测快照
	Report(ctx context.Context, snap protocol.TelemetrySnapshot) error
}

// MultiReporter 支持同时向多个目标输出 (e.g., Console + CSV)
type MultiReporter struct {
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{
		reporters: reporters,
	}
}

// Report 所有目标都会被调用，返回第一个错误
func (m *MultiReporter) Report(ctx context.Context, snap protocol.TelemetrySnapshot) error {
	var first error
	for _, r := range m.reporters {
		if err := r.Report(ctx, snap); err != nil && first == nil {
			first = err
		}
	}
	return first
}
