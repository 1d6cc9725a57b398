/**
 * 命令状态机
 * @author: sun977
 * @date: 2026.02.16
 * @description: 管理单条入站命令从接收到终态的生命周期: 登记 -> Received -> 校验 -> 异步执行 -> Completed|Failed
 */
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"nodeagent/internal/executor/base"
	"nodeagent/internal/pkg/journal"
	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/metrics"
	"nodeagent/internal/pkg/protocol"
)

// ResponseSink 命令响应的出口，通常是会话的出站队列
// 返回 false 表示响应已被丢弃（会话已结束）
type ResponseSink interface {
	PublishResponse(ctx context.Context, resp protocol.CommandResponse) bool
}

// Machine 命令状态机
// 每条合法命令在独立的goroutine中执行，互不阻塞，也不阻塞会话收发
type Machine struct {
	executor base.Executor
	journal  journal.Journal
	policy   CustomPolicy
	metrics  *metrics.Metrics
	timeout  time.Duration
	now      func() time.Time

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// Option 状态机可选项
type Option func(*Machine)

// WithTimeout 单条命令执行时限，0表示不限制
func WithTimeout(d time.Duration) Option {
	return func(m *Machine) { m.timeout = d }
}

// WithMetrics 指标记录
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

// WithClock 替换时间来源，测试使用
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine 创建状态机，journal 为空时使用内存日志
func NewMachine(executor base.Executor, j journal.Journal, policy CustomPolicy, opts ...Option) *Machine {
	if j == nil {
		j = journal.NewMemoryJournal(0)
	}
	m := &Machine{
		executor: executor,
		journal:  j,
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle 处理一条入站命令，不等待执行完成
func (m *Machine) Handle(ctx context.Context, cmd protocol.Command, sink ResponseSink) {
	fields := map[string]interface{}{"target": cmd.Target.String()}

	fresh, err := m.journal.Begin(ctx, cmd, m.now())
	if err != nil {
		// 日志不可用时按新命令处理
		logger.LogSystemEvent("CommandMachine", "JournalBegin", fmt.Sprintf("journal unavailable for %s: %v", cmd.ID, err), logger.WarnLevel, nil)
	} else if !fresh {
		logger.LogCommandEvent(cmd.ID, cmd.Kind.String(), "Duplicate", "duplicate command id dropped", fields)
		return
	}

	sink.PublishResponse(ctx, protocol.NewReceived(cmd.ID, m.now()))
	logger.LogCommandEvent(cmd.ID, cmd.Kind.String(), string(protocol.StatusReceived), "command received", fields)

	if err := Validate(cmd, m.policy); err != nil {
		m.finish(ctx, cmd, sink, m.now(), "", err)
		return
	}

	m.wg.Add(1)
	m.inFlight.Add(1)
	go m.execute(context.WithoutCancel(ctx), cmd, sink)
}

// execute 在独立goroutine中运行，会话结束不会中断执行
func (m *Machine) execute(ctx context.Context, cmd protocol.Command, sink ResponseSink) {
	defer m.wg.Done()
	defer m.inFlight.Add(-1)

	started := m.now()
	if err := m.journal.Update(ctx, protocol.NewInProgress(cmd.ID, started)); err != nil && !errors.Is(err, journal.ErrNotFound) {
		logger.Debugf("journal update for %s failed: %v", cmd.ID, err)
	}

	runCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	out, err := m.run(runCtx, cmd)
	if err != nil && m.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("command timed out after %s: %w", m.timeout, err)
	}
	m.finish(ctx, cmd, sink, started, out, err)
}

// run 执行器panic转为失败
func (m *Machine) run(ctx context.Context, cmd protocol.Command) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("executor panic: %v", r)
		}
	}()
	return m.executor.Run(ctx, cmd)
}

// finish 产生唯一的终态响应
func (m *Machine) finish(ctx context.Context, cmd protocol.Command, sink ResponseSink, started time.Time, out string, err error) {
	now := m.now()
	var resp protocol.CommandResponse
	if err != nil {
		resp = protocol.NewFailed(cmd.ID, err.Error(), now)
	} else {
		resp = protocol.NewCompleted(cmd.ID, out, now)
	}

	if uerr := m.journal.Update(ctx, resp); uerr != nil && !errors.Is(uerr, journal.ErrNotFound) {
		logger.Debugf("journal update for %s failed: %v", cmd.ID, uerr)
	}

	delivered := sink.PublishResponse(ctx, resp)
	m.metrics.CommandFinished(ctx, cmd.Kind.String(), string(resp.Status), now.Sub(started))

	fields := map[string]interface{}{
		"target":    cmd.Target.String(),
		"delivered": delivered,
	}
	msg := "command completed"
	if err != nil {
		msg = "command failed: " + err.Error()
	}
	logger.LogCommandEvent(cmd.ID, cmd.Kind.String(), string(resp.Status), msg, fields)
}

// InFlight 正在执行的命令数
func (m *Machine) InFlight() int64 {
	return m.inFlight.Load()
}

// Wait 等待所有已派发命令结束，仅用于测试和有限时间的退出等待
func (m *Machine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Journal 命令日志，供本地状态接口查询
func (m *Machine) Journal() journal.Journal {
	return m.journal
}
