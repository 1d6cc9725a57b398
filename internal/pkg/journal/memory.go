package journal

import (
	"container/list"
	"context"
	"sync"
	"time"

	"nodeagent/internal/pkg/protocol"
)

const defaultCapacity = 1024

// MemoryJournal 内存命令日志，超出容量时淘汰最早的已结束命令
// 未结束的命令不会被淘汰，全部未结束时允许暂时超出容量
type MemoryJournal struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // 按接收顺序，元素为 commandID
	entries  map[string]*memoryItem
}

type memoryItem struct {
	entry Entry
	elem  *list.Element
}

// NewMemoryJournal 创建内存命令日志
func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryJournal{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*memoryItem),
	}
}

func (j *MemoryJournal) Begin(_ context.Context, cmd protocol.Command, at time.Time) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.entries[cmd.ID]; ok {
		return false, nil
	}
	for len(j.entries) >= j.capacity && j.evict() {
	}
	item := &memoryItem{entry: newEntry(cmd, at)}
	item.elem = j.order.PushBack(cmd.ID)
	j.entries[cmd.ID] = item
	return true, nil
}

// evict 淘汰最早的已结束命令，没有可淘汰的返回 false，调用方持有锁
func (j *MemoryJournal) evict() bool {
	for e := j.order.Front(); e != nil; e = e.Next() {
		id := e.Value.(string)
		if j.entries[id].entry.Status.IsTerminal() {
			j.order.Remove(e)
			delete(j.entries, id)
			return true
		}
	}
	return false
}

func (j *MemoryJournal) Update(_ context.Context, resp protocol.CommandResponse) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	item, ok := j.entries[resp.CommandID]
	if !ok {
		return ErrNotFound
	}
	item.entry.apply(resp)
	return nil
}

func (j *MemoryJournal) Get(_ context.Context, commandID string) (*Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	item, ok := j.entries[commandID]
	if !ok {
		return nil, ErrNotFound
	}
	entry := item.entry
	return &entry, nil
}

func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 || limit > len(j.entries) {
		limit = len(j.entries)
	}
	out := make([]Entry, 0, limit)
	for e := j.order.Back(); e != nil && len(out) < limit; e = e.Prev() {
		out = append(out, j.entries[e.Value.(string)].entry)
	}
	return out, nil
}

func (j *MemoryJournal) Close() error {
	return nil
}
