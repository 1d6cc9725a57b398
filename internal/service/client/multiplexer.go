package client

import (
	"context"
	"sync"
	"time"

	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/metrics"
	"nodeagent/internal/pkg/protocol"
)

// Multiplexer 出站复用器，连接唯一的写者
// 遥测与命令响应各有一个有界队列，两队列之间不分优先级，队列内部保持先进先出
type Multiplexer struct {
	transport    Transport
	telemetry    chan []byte
	responses    chan []byte
	pingInterval time.Duration
	metrics      *metrics.Metrics

	done      chan struct{}
	closeOnce sync.Once
}

func newMultiplexer(transport Transport, cfg Config, m *metrics.Metrics) *Multiplexer {
	return &Multiplexer{
		transport:    transport,
		telemetry:    make(chan []byte, cfg.TelemetryQueueSize),
		responses:    make(chan []byte, cfg.ResponseQueueSize),
		pingInterval: cfg.PingInterval,
		metrics:      m,
		done:         make(chan struct{}),
	}
}

// PublishTelemetry 编码快照并排队，队列满时阻塞
func (x *Multiplexer) PublishTelemetry(ctx context.Context, snapshot protocol.TelemetrySnapshot) bool {
	frame, err := protocol.EncodeSnapshot(snapshot)
	if err != nil {
		logger.LogSystemEvent("Multiplexer", "Encode", "telemetry encode failed: "+err.Error(), logger.ErrorLevel, nil)
		return false
	}
	return x.enqueue(ctx, x.telemetry, frame)
}

// PublishResponse 编码命令响应并排队，队列满时阻塞
func (x *Multiplexer) PublishResponse(ctx context.Context, resp protocol.CommandResponse) bool {
	frame, err := protocol.EncodeEnvelope(protocol.ResponseEnvelope(resp))
	if err != nil {
		logger.LogSystemEvent("Multiplexer", "Encode", "response encode failed: "+err.Error(), logger.ErrorLevel,
			map[string]interface{}{"command_id": resp.CommandID})
		return false
	}
	return x.enqueue(ctx, x.responses, frame)
}

// enqueue 复用器关闭后生产者立即返回，帧被丢弃
func (x *Multiplexer) enqueue(ctx context.Context, queue chan []byte, frame []byte) bool {
	select {
	case <-x.done:
		x.metrics.FrameDropped(context.Background(), metrics.DropClosed)
		return false
	default:
	}

	select {
	case queue <- frame:
		return true
	case <-x.done:
		x.metrics.FrameDropped(context.Background(), metrics.DropClosed)
		return false
	case <-ctx.Done():
		x.metrics.FrameDropped(context.Background(), metrics.DropClosed)
		return false
	}
}

// run 写循环，写失败时返回 TransportError
func (x *Multiplexer) run(ctx context.Context) error {
	var pings <-chan time.Time
	if x.pingInterval > 0 {
		ticker := time.NewTicker(x.pingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		var (
			frame  []byte
			stream string
		)
		select {
		case <-ctx.Done():
			return nil
		case <-pings:
			if err := x.transport.Ping(); err != nil {
				return &TransportError{Op: "ping", Err: err}
			}
			continue
		case frame = <-x.telemetry:
			stream = metrics.StreamTelemetry
		case frame = <-x.responses:
			stream = metrics.StreamResponse
		}

		if err := x.transport.WriteFrame(frame); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
		x.metrics.FrameSent(ctx, stream)
	}
}

// close 释放所有阻塞中的生产者
func (x *Multiplexer) close() {
	x.closeOnce.Do(func() { close(x.done) })
}
