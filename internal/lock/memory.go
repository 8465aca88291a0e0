package lock

import (
	"context"
	"sync"
)

type memEntry struct {
	ch   chan struct{}
	refs int
}

// Memory is a keyed mutex. Entries are dropped once nobody holds or waits on them.
type Memory struct {
	mu      sync.Mutex
	entries map[int64]*memEntry
}

// NewMemory returns an in-process Locker.
func NewMemory() *Memory {
	return &Memory{entries: make(map[int64]*memEntry)}
}

func (m *Memory) Acquire(ctx context.Context, key int64) (Lease, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return &memLease{m: m, key: key, e: e}, nil
	case <-ctx.Done():
		m.drop(key, e)
		return nil, ctx.Err()
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) drop(key int64, e *memEntry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

// held reports how many keys have holders or waiters.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type memLease struct {
	m    *Memory
	key  int64
	e    *memEntry
	once sync.Once
}

func (l *memLease) Release(context.Context) error {
	l.once.Do(func() {
		<-l.e.ch
		l.m.drop(l.key, l.e)
	})
	return nil
}
