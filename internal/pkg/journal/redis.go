package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nodeagent/internal/config"
	"nodeagent/internal/pkg/protocol"
)

// RedisJournal Redis命令日志，适合Agent重启后仍需识别重复命令的部署
// key布局: {prefix}:{id} 存储记录json，{prefix}:index 为按接收时间排序的有序集合
type RedisJournal struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	timeout  time.Duration
	capacity int64
}

// NewRedisJournal 连接Redis并创建命令日志
func NewRedisJournal(cfg *config.RedisConfig, capacity int) (*RedisJournal, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis %s: %w", cfg.Addr, err)
	}
	return newRedisJournal(client, cfg, capacity), nil
}

func newRedisJournal(client *redis.Client, cfg *config.RedisConfig, capacity int) *RedisJournal {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "nodeagent:commands"
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisJournal{
		client:   client,
		prefix:   prefix,
		ttl:      cfg.TTL,
		timeout:  timeout,
		capacity: int64(capacity),
	}
}

func (j *RedisJournal) entryKey(id string) string {
	return j.prefix + ":" + id
}

func (j *RedisJournal) indexKey() string {
	return j.prefix + ":index"
}

func (j *RedisJournal) Begin(ctx context.Context, cmd protocol.Command, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	data, err := json.Marshal(newEntry(cmd, at))
	if err != nil {
		return false, fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	ok, err := j.client.SetNX(ctx, j.entryKey(cmd.ID), data, j.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to begin command %s: %w", cmd.ID, err)
	}
	if !ok {
		return false, nil
	}

	pipe := j.client.TxPipeline()
	pipe.ZAdd(ctx, j.indexKey(), redis.Z{Score: float64(at.UnixNano()), Member: cmd.ID})
	pipe.ZRemRangeByRank(ctx, j.indexKey(), 0, -j.capacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("failed to index command %s: %w", cmd.ID, err)
	}
	return true, nil
}

func (j *RedisJournal) Update(ctx context.Context, resp protocol.CommandResponse) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	entry, err := j.get(ctx, resp.CommandID)
	if err != nil {
		return err
	}
	if !entry.apply(resp) {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	if err := j.client.SetArgs(ctx, j.entryKey(resp.CommandID), data, redis.SetArgs{KeepTTL: true, Mode: "XX"}).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to update command %s: %w", resp.CommandID, err)
	}
	return nil
}

func (j *RedisJournal) Get(ctx context.Context, commandID string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.get(ctx, commandID)
}

func (j *RedisJournal) get(ctx context.Context, commandID string) (*Entry, error) {
	data, err := j.client.Get(ctx, j.entryKey(commandID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get command %s: %w", commandID, err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal entry: %w", err)
	}
	return &entry, nil
}

func (j *RedisJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := j.client.ZRevRange(ctx, j.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = j.entryKey(id)
	}
	values, err := j.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load commands: %w", err)
	}

	out := make([]Entry, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// 记录已过期，索引稍后由容量裁剪清理
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (j *RedisJournal) Close() error {
	return j.client.Close()
}
