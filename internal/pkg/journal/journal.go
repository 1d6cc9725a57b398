/**
 * 命令日志
 * @author: sun977
 * @date: 2026.02.12
 * @description: 记录采集端下发命令的生命周期，用于重复命令识别和本地状态查询，支持内存与Redis两种存储
 */
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nodeagent/internal/config"
	"nodeagent/internal/pkg/protocol"
)

// ErrNotFound 命令不在日志中
var ErrNotFound = errors.New("command not found in journal")

// Entry 单条命令记录
type Entry struct {
	CommandID  string          `json:"command_id"`
	Kind       string          `json:"kind"`
	Target     string          `json:"target"`
	Status     protocol.Status `json:"status"`
	Result     *string         `json:"result,omitempty"`
	Error      *string         `json:"error,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Journal 命令日志接口
type Journal interface {
	// Begin 登记新命令，id已存在时返回 false
	Begin(ctx context.Context, cmd protocol.Command, at time.Time) (bool, error)
	// Update 推进命令状态，非法迁移被忽略
	Update(ctx context.Context, resp protocol.CommandResponse) error
	// Get 查询单条记录
	Get(ctx context.Context, commandID string) (*Entry, error)
	// Recent 按接收时间倒序返回最近的记录
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// New 根据配置创建命令日志
func New(cfg *config.JournalConfig) (Journal, error) {
	if cfg == nil {
		return NewMemoryJournal(0), nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryJournal(cfg.Capacity), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("journal backend redis requires redis config")
		}
		return NewRedisJournal(cfg.Redis, cfg.Capacity)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}

func newEntry(cmd protocol.Command, at time.Time) Entry {
	return Entry{
		CommandID:  cmd.ID,
		Kind:       cmd.Kind.String(),
		Target:     cmd.Target.String(),
		Status:     protocol.StatusReceived,
		ReceivedAt: at,
		UpdatedAt:  at,
	}
}

// apply 按响应推进记录，返回是否发生变化
func (e *Entry) apply(resp protocol.CommandResponse) bool {
	if !e.Status.CanTransition(resp.Status) {
		return false
	}
	e.Status = resp.Status
	e.Result = resp.Result
	e.Error = resp.Error
	e.UpdatedAt = time.Unix(resp.RespondedAt, 0)
	return true
}
