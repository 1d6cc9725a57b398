/**
 * 遥测发布服务
 * @author: sun977
 * @date: 2026.02.17
 * @description: 按固定间隔采集主机与节点指标，组装遥测快照交给会话出站队列或本地报告器
 */
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/metrics"
	"nodeagent/internal/pkg/protocol"
)

// Source 指标来源
type Source interface {
	System(ctx context.Context) (protocol.SystemMetrics, error)
	Units(ctx context.Context) ([]protocol.UnitMetrics, error)
}

// Sink 快照出口，返回 false 表示快照被丢弃
type Sink interface {
	PublishTelemetry(ctx context.Context, snapshot protocol.TelemetrySnapshot) bool
}

// SinkFunc 函数适配为 Sink
type SinkFunc func(ctx context.Context, snapshot protocol.TelemetrySnapshot) bool

// PublishTelemetry 调用函数本身
func (f SinkFunc) PublishTelemetry(ctx context.Context, snapshot protocol.TelemetrySnapshot) bool {
	return f(ctx, snapshot)
}

// Publisher 遥测发布器
type Publisher struct {
	source         Source
	agentID        string
	interval       time.Duration
	collectTimeout time.Duration
	metrics        *metrics.Metrics
	now            func() time.Time

	mu     sync.RWMutex
	latest *protocol.TelemetrySnapshot
	lastAt int64
}

// PublisherOption 发布器可选项
type PublisherOption func(*Publisher)

// WithCollectTimeout 单次采集超时
func WithCollectTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.collectTimeout = d }
}

// WithPublisherMetrics 记录采集故障
func WithPublisherMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// WithPublisherClock 替换时间来源
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) { p.now = now }
}

// NewPublisher 创建遥测发布器
func NewPublisher(source Source, agentID string, interval time.Duration, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		source:   source,
		agentID:  agentID,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Collect 采集一份快照
// 采集失败不会返回错误，对应部分以零值或空列表代替
func (p *Publisher) Collect(ctx context.Context) protocol.TelemetrySnapshot {
	if p.collectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.collectTimeout)
		defer cancel()
	}

	system, err := p.source.System(ctx)
	if err != nil {
		p.fault(ctx, "system", err)
		system = protocol.SystemMetrics{}
	}

	units, err := p.source.Units(ctx)
	if err != nil {
		p.fault(ctx, "units", err)
		units = nil
	}
	if units == nil {
		units = []protocol.UnitMetrics{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// 时间戳不回退
	at := p.now().Unix()
	if at < p.lastAt {
		at = p.lastAt
	}
	p.lastAt = at

	snapshot := protocol.TelemetrySnapshot{
		AgentID:    p.agentID,
		CapturedAt: at,
		System:     system,
		Units:      units,
	}
	p.latest = &snapshot
	return snapshot
}

func (p *Publisher) fault(ctx context.Context, part string, err error) {
	p.metrics.CollectionFault(ctx, part)
	logger.LogSystemEvent("TelemetryPublisher", "CollectionFault",
		fmt.Sprintf("%s collection failed: %v", part, err), logger.WarnLevel,
		map[string]interface{}{"part": part})
}

// Latest 最近一次采集的快照
func (p *Publisher) Latest() (protocol.TelemetrySnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return protocol.TelemetrySnapshot{}, false
	}
	return *p.latest, true
}

// Run 立即发布一份快照，之后每个间隔发布一次，直到ctx结束
// 采集慢于间隔时错过的tick直接跳过
func (p *Publisher) Run(ctx context.Context, sink Sink) error {
	if p.interval <= 0 {
		return fmt.Errorf("telemetry interval must be positive, got %s", p.interval)
	}

	p.publish(ctx, sink)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.publish(ctx, sink)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, sink Sink) {
	snapshot := p.Collect(ctx)
	if ctx.Err() != nil {
		return
	}
	if !sink.PublishTelemetry(ctx, snapshot) {
		logger.Debugf("telemetry snapshot at %d dropped", snapshot.CapturedAt)
	}
}
