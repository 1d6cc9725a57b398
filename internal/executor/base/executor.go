/**
 * 执行器基础接口
 * @author: sun977
 * @date: 2025.10.21
 * @description: 定义命令执行器的统一接口，执行器负责命令的具体动作并返回一个结果或一个错误
 */
package base

import (
	"context"
	"fmt"

	"nodeagent/internal/pkg/protocol"
)

// Executor 执行器接口
// 同一执行器会被不同命令并发调用
type Executor interface {
	// Run 执行命令，成功返回可读的输出，失败返回错误
	Run(ctx context.Context, cmd protocol.Command) (string, error)
}

// ExecutorFunc 函数适配器
type ExecutorFunc func(ctx context.Context, cmd protocol.Command) (string, error)

func (f ExecutorFunc) Run(ctx context.Context, cmd protocol.Command) (string, error) {
	return f(ctx, cmd)
}

// ExecutionError 命令执行失败
type ExecutionError struct {
	Action string // 失败的动作描述，例如 "unit start"
	Stderr string // 进程错误输出
	Err    error  // 底层错误
}

func (e *ExecutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s", e.Action, e.Stderr)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
	}
	return e.Action + " failed"
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
