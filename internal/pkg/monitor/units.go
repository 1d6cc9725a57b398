package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/protocol"
)

// ErrNoUnitData 无法获取节点容器列表
var ErrNoUnitData = errors.New("unit metrics unavailable")

// UnitCollector 被管理节点（容器）指标采集
type UnitCollector struct {
	client *DockerClient
	filter []string
}

// NewUnitCollector filter 为容器名子串列表，为空时采集全部运行中的容器
func NewUnitCollector(client *DockerClient, filter []string) *UnitCollector {
	cleaned := make([]string, 0, len(filter))
	for _, f := range filter {
		if f = strings.TrimSpace(f); f != "" {
			cleaned = append(cleaned, f)
		}
	}
	return &UnitCollector{client: client, filter: cleaned}
}

// Units 采集运行中且匹配过滤条件的容器
// 单个容器统计失败时跳过该容器，列表失败时返回 ErrNoUnitData
func (u *UnitCollector) Units(ctx context.Context) ([]protocol.UnitMetrics, error) {
	containers, err := u.client.ListRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoUnitData, err)
	}

	units := make([]protocol.UnitMetrics, 0, len(containers))
	for _, c := range containers {
		name := "unknown"
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		if !MatchFilter(name, u.filter) {
			continue
		}

		stats, err := u.client.Stats(ctx, c.ID)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"component": "Monitor",
				"unit":      name,
			}).Debugf("skip unit without stats: %v", err)
			continue
		}
		units = append(units, buildUnitMetrics(name, c, stats))
	}
	return units, nil
}

func buildUnitMetrics(name string, c dockerContainer, s *dockerStats) protocol.UnitMetrics {
	m := protocol.UnitMetrics{
		Name:        name,
		ID:          c.ID,
		Status:      c.Status,
		CPUUsage:    CPUPercent(s),
		MemoryUsage: s.MemoryStats.Usage,
		MemoryLimit: s.MemoryStats.Limit,
		Nickname:    Nickname(name),
	}
	if m.MemoryLimit > 0 {
		m.MemoryPercent = float64(m.MemoryUsage) / float64(m.MemoryLimit) * 100.0
	}
	for _, n := range s.Networks {
		m.NetworkRx += n.RxBytes
		m.NetworkTx += n.TxBytes
	}
	return m
}

// CPUPercent 按两次采样的差值计算，任一差值不为正时返回0
func CPUPercent(s *dockerStats) float64 {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(s.CPUStats.SystemCPUUsage) - float64(s.PreCPUStats.SystemCPUUsage)
	if cpuDelta <= 0 || systemDelta <= 0 {
		return 0
	}
	online := s.CPUStats.OnlineCPUs
	if online == 0 {
		online = 1
	}
	return cpuDelta / systemDelta * 100.0 * float64(online)
}

// MatchFilter 名称包含任一过滤串即匹配，空过滤表示全部
func MatchFilter(name string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// Nickname 3node<N> -> Creditcoin 3.0 Node N，node<N> -> Creditcoin 2.0 Node N
func Nickname(name string) *string {
	var nick string
	switch {
	case strings.HasPrefix(name, "3node"):
		nick = "Creditcoin 3.0 Node " + name[len("3node"):]
	case strings.HasPrefix(name, "node"):
		nick = "Creditcoin 2.0 Node " + name[len("node"):]
	default:
		return nil
	}
	return &nick
}
