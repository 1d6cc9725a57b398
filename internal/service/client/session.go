/**
 * 采集端会话控制
 * @author: sun977
 * @date: 2026.02.18
 * @description: 会话状态机 Connecting -> Connected -> Closed|Failed
 * @func: 首次连接失败时按配置重试，全部失败返回 ErrConnectFailed；连接建立后任一方向出错即结束会话，不重连
 */
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/metrics"
	monitorService "nodeagent/internal/service/monitor"
)

// State 会话状态
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TelemetryRunner 按节奏产生遥测快照
type TelemetryRunner interface {
	Run(ctx context.Context, sink monitorService.Sink) error
}

// Session 一次采集端会话
type Session struct {
	cfg       Config
	dialer    Dialer
	handler   CommandHandler
	telemetry TelemetryRunner
	metrics   *metrics.Metrics
	onState   func(from, to State)

	mu    sync.RWMutex
	state State
}

// SessionOption 会话可选项
type SessionOption func(*Session)

// WithStateHook 状态变化回调，在状态切换的goroutine中同步调用
func WithStateHook(fn func(from, to State)) SessionOption {
	return func(s *Session) { s.onState = fn }
}

// WithSessionMetrics 记录帧收发
func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession 创建会话
func NewSession(cfg Config, dialer Dialer, handler CommandHandler, telemetry TelemetryRunner, opts ...SessionOption) *Session {
	s := &Session{
		cfg:       cfg.withDefaults(),
		dialer:    dialer,
		handler:   handler,
		telemetry: telemetry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State 当前状态
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	s.notify(from, to)
}

func (s *Session) notify(from, to State) {
	logger.LogSystemEvent("Session", "StateChange", fmt.Sprintf("%s -> %s", from, to), logger.InfoLevel,
		map[string]interface{}{"from": from.String(), "to": to.String()})
	if s.onState != nil {
		s.onState(from, to)
	}
}

// Run 建立连接并运行会话直到结束
// 返回 nil 表示对端正常关闭或 ctx 结束；首次连接失败返回包装了 ErrConnectFailed 的错误
func (s *Session) Run(ctx context.Context) error {
	// 检查与占用在同一临界区内完成，并发调用只有一个能进入连接阶段
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionUsed
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.notify(StateIdle, StateConnecting)

	transport, err := s.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.setState(StateClosed)
			return ctx.Err()
		}
		s.setState(StateFailed)
		return err
	}

	s.setState(StateConnected)
	err = s.serve(ctx, transport)
	s.setState(StateClosed)

	if errors.Is(err, errRemoteClosed) {
		return nil
	}
	return err
}

// connect 按配置次数尝试握手
func (s *Session) connect(ctx context.Context) (Transport, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.ConnectAttempts; attempt++ {
		transport, err := s.dialer.Dial(ctx)
		if err == nil {
			logger.LogSystemEvent("Session", "Connect", fmt.Sprintf("connected on attempt %d", attempt), logger.InfoLevel, nil)
			return transport, nil
		}
		lastErr = err
		logger.LogSystemEvent("Session", "Connect",
			fmt.Sprintf("attempt %d/%d failed: %v", attempt, s.cfg.ConnectAttempts, err), logger.WarnLevel, nil)

		if attempt == s.cfg.ConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.RetryInterval):
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnectFailed, s.cfg.ConnectAttempts,
		&TransportError{Op: "dial", Err: lastErr})
}

// serve 运行发布、分发与复用三个循环，任一结束即拆除会话
// 拆除不影响仍在执行的命令，它们之后的响应会被丢弃
func (s *Session) serve(ctx context.Context, transport Transport) error {
	mux := newMultiplexer(transport, s.cfg, s.metrics)
	disp := &dispatcher{transport: transport, handler: s.handler, sink: mux, metrics: s.metrics}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mux.run(gctx)
	})
	g.Go(func() error {
		return disp.run(gctx)
	})
	g.Go(func() error {
		return s.telemetry.Run(gctx, mux)
	})
	g.Go(func() error {
		<-gctx.Done()
		mux.close()
		if err := transport.Close(); err != nil {
			logger.Debugf("session: transport close: %v", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, errRemoteClosed) {
		logger.LogSystemEvent("Session", "Teardown", "session ended: "+err.Error(), logger.WarnLevel, nil)
	}
	return err
}
