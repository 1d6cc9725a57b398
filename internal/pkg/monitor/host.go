package monitor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/protocol"
)

// ErrNoSystemData 所有主机指标都采集失败
var ErrNoSystemData = errors.New("no host metrics could be collected")

// cpu采样窗口
const cpuSampleWindow = 100 * time.Millisecond

// HostCollector 基于 gopsutil 的主机指标采集
// 单项指标失败只记录告警并保持零值
type HostCollector struct {
	diskPath string
}

// NewHostCollector 创建主机采集器，diskPath 为磁盘统计的挂载点
func NewHostCollector(diskPath string) *HostCollector {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostCollector{diskPath: diskPath}
}

// System 采集主机指标
func (h *HostCollector) System(ctx context.Context) (protocol.SystemMetrics, error) {
	var (
		m      protocol.SystemMetrics
		failed int
	)
	const probes = 6

	warn := func(what string, err error) {
		failed++
		logger.LogSystemEvent("Monitor", "CollectSystem", "Failed to get "+what+": "+err.Error(), logger.WarnLevel, nil)
	}

	// 1. 主机名与运行时间
	if info, err := host.InfoWithContext(ctx); err != nil {
		warn("host info", err)
	} else {
		m.HostName = info.Hostname
		m.Uptime = info.Uptime
	}

	// 2. CPU 型号与物理核数
	if infos, err := cpu.InfoWithContext(ctx); err != nil {
		warn("CPU info", err)
	} else if len(infos) > 0 {
		m.CPUModel = infos[0].ModelName
	}
	if cores, err := cpu.CountsWithContext(ctx, false); err != nil || cores == 0 {
		m.CPUCores = runtime.NumCPU()
	} else {
		m.CPUCores = cores
	}

	// 3. CPU 使用率
	if percent, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err != nil {
		warn("CPU usage", err)
	} else if len(percent) > 0 {
		m.CPUUsage = float32(percent[0])
	}

	// 4. 内存
	if vMem, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		warn("memory usage", err)
	} else {
		m.MemoryTotal = vMem.Total
		m.MemoryUsed = vMem.Used
		m.MemoryUsedPercent = float32(vMem.UsedPercent)
	}

	// 5. 交换分区
	if swap, err := mem.SwapMemoryWithContext(ctx); err != nil {
		warn("swap usage", err)
	} else {
		m.SwapTotal = swap.Total
		m.SwapUsed = swap.Used
	}

	// 6. 磁盘，"/" 失败时回退到 Windows 系统盘
	usage, err := disk.UsageWithContext(ctx, h.diskPath)
	if err != nil && h.diskPath == "/" {
		usage, err = disk.UsageWithContext(ctx, "C:")
	}
	if err != nil {
		warn("disk usage", err)
	} else {
		m.DiskTotal = usage.Total
		m.DiskUsed = usage.Used
	}

	if failed == probes {
		return protocol.SystemMetrics{}, ErrNoSystemData
	}
	return m, nil
}
