package journal

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"nodeagent/internal/config"
	"nodeagent/internal/pkg/protocol"
)

func testCommand(id string) protocol.Command {
	return protocol.Command{ID: id, Kind: protocol.KindStart, Target: protocol.UnitTarget("node1"), IssuedAt: 1}
}

// exerciseJournal 两种存储共用的行为检查
func exerciseJournal(t *testing.T, j Journal) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	ok, err := j.Begin(ctx, testCommand("c1"), now)
	if err != nil || !ok {
		t.Fatalf("Begin c1 = %v, %v", ok, err)
	}
	ok, err = j.Begin(ctx, testCommand("c1"), now)
	if err != nil || ok {
		t.Fatalf("Duplicate Begin should return false, got %v, %v", ok, err)
	}

	if err := j.Update(ctx, protocol.NewInProgress("c1", now)); err != nil {
		t.Fatalf("Update InProgress failed: %v", err)
	}
	if err := j.Update(ctx, protocol.NewCompleted("c1", "unit 'node1' started", now.Add(time.Second))); err != nil {
		t.Fatalf("Update Completed failed: %v", err)
	}
	// 终态之后的更新被忽略
	if err := j.Update(ctx, protocol.NewFailed("c1", "late", now.Add(2*time.Second))); err != nil {
		t.Fatalf("Late update returned error: %v", err)
	}

	entry, err := j.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != protocol.StatusCompleted || entry.Result == nil || *entry.Result != "unit 'node1' started" || entry.Error != nil {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if entry.Kind != "Start" || entry.Target != "Node(node1)" {
		t.Errorf("Unexpected kind/target: %s %s", entry.Kind, entry.Target)
	}

	if _, err := j.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := j.Update(ctx, protocol.NewFailed("missing", "x", now)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on update, got %v", err)
	}

	if _, err := j.Begin(ctx, testCommand("c2"), now.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	recent, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].CommandID != "c2" || recent[1].CommandID != "c1" {
		t.Errorf("Unexpected recent order: %+v", recent)
	}
	recent, _ = j.Recent(ctx, 1)
	if len(recent) != 1 {
		t.Errorf("Recent limit not applied: %d", len(recent))
	}
}

func TestMemoryJournal(t *testing.T) {
	exerciseJournal(t, NewMemoryJournal(16))
}

func TestMemoryJournal_EvictsTerminalFirst(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(2)
	now := time.Now()

	j.Begin(ctx, testCommand("running"), now)
	j.Begin(ctx, testCommand("done"), now)
	j.Update(ctx, protocol.NewFailed("done", "x", now))

	ok, err := j.Begin(ctx, testCommand("new"), now)
	if err != nil || !ok {
		t.Fatalf("Begin new = %v, %v", ok, err)
	}
	if _, err := j.Get(ctx, "done"); !errors.Is(err, ErrNotFound) {
		t.Error("Terminal entry should be evicted first")
	}
	if _, err := j.Get(ctx, "running"); err != nil {
		t.Error("Running entry should be kept")
	}

	// 全部未结束时超出容量，不淘汰任何一条
	if ok, _ := j.Begin(ctx, testCommand("newer"), now); !ok {
		t.Fatal("Begin newer should succeed past capacity")
	}
	for _, id := range []string{"running", "new", "newer"} {
		if _, err := j.Get(ctx, id); err != nil {
			t.Errorf("Unfinished entry %s should be kept: %v", id, err)
		}
	}
	if ok, _ := j.Begin(ctx, testCommand("running"), now); ok {
		t.Error("Running id must still be reported as duplicate")
	}

	// 结束后的条目在下次登记时被淘汰，回到容量以内
	j.Update(ctx, protocol.NewCompleted("running", "ok", now))
	j.Update(ctx, protocol.NewCompleted("new", "ok", now))
	j.Begin(ctx, testCommand("last"), now)
	if got, _ := j.Recent(ctx, 0); len(got) != 2 {
		t.Errorf("Expected 2 entries after eviction, got %d", len(got))
	}
}

func TestNew_Backends(t *testing.T) {
	j, err := New(&config.JournalConfig{Backend: "memory", Capacity: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := j.(*MemoryJournal); !ok {
		t.Errorf("Expected MemoryJournal, got %T", j)
	}
	if _, err := New(&config.JournalConfig{Backend: "etcd"}); err == nil {
		t.Error("Unknown backend should fail")
	}
	if _, err := New(&config.JournalConfig{Backend: "redis"}); err == nil {
		t.Error("Redis backend without config should fail")
	}
}

// Redis测试需要本地实例，通过 NODEAGENT_TEST_REDIS_ADDR 指定
func TestRedisJournal(t *testing.T) {
	addr := os.Getenv("NODEAGENT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NODEAGENT_TEST_REDIS_ADDR not set")
	}
	prefix := "nodeagent:test:" + time.Now().Format("150405.000000")
	cfg := &config.RedisConfig{Addr: addr, KeyPrefix: prefix, TTL: time.Minute, Timeout: 2 * time.Second}

	j, err := NewRedisJournal(cfg, 8)
	if err != nil {
		t.Fatalf("NewRedisJournal failed: %v", err)
	}
	defer func() {
		cleanup := redis.NewClient(&redis.Options{Addr: addr})
		keys, _ := cleanup.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			cleanup.Del(context.Background(), keys...)
		}
		cleanup.Close()
		j.Close()
	}()

	exerciseJournal(t, j)
}

func TestNewRedisJournal_Unreachable(t *testing.T) {
	_, err := NewRedisJournal(&config.RedisConfig{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond}, 8)
	if err == nil {
		t.Error("Expected connection error")
	}
}
