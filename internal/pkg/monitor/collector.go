/**
 * 遥测采集器
 * @author: sun977
 * @date: 2026.02.14
 * @description: 组合主机指标(gopsutil)与节点容器指标(Docker Engine API)，供遥测发布使用
 */
package monitor

import (
	"context"

	"nodeagent/internal/config"
	"nodeagent/internal/pkg/protocol"
)

// Collector 主机与节点指标采集器
type Collector struct {
	host   *HostCollector
	units  *UnitCollector
	docker *DockerClient
}

// NewCollector 根据监控配置创建采集器
func NewCollector(cfg *config.MonitorConfig) (*Collector, error) {
	if cfg == nil {
		cfg = &config.MonitorConfig{}
	}
	docker, err := NewDockerClient(cfg.DockerHost)
	if err != nil {
		return nil, err
	}
	return &Collector{
		host:   NewHostCollector(cfg.DiskPath),
		units:  NewUnitCollector(docker, cfg.UnitFilter),
		docker: docker,
	}, nil
}

// System 主机指标
func (c *Collector) System(ctx context.Context) (protocol.SystemMetrics, error) {
	return c.host.System(ctx)
}

// Units 节点指标
func (c *Collector) Units(ctx context.Context) ([]protocol.UnitMetrics, error) {
	return c.units.Units(ctx)
}

// Close 释放Docker连接
func (c *Collector) Close() {
	c.docker.Close()
}
