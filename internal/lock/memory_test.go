package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemorySerialisesSameKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := m.Acquire(ctx, 7)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = lease.Release(ctx)
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxInside)
	}
	if m.held() != 0 {
		t.Fatalf("expected entries dropped, %d remain", m.held())
	}
}

func TestMemoryDifferentKeysDoNotContend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a, err := m.Acquire(ctx, 1)
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	defer func() { _ = a.Release(ctx) }()
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	b, err := m.Acquire(short, 2)
	if err != nil {
		t.Fatalf("acquire 2 should not block: %v", err)
	}
	_ = b.Release(ctx)
}

func TestMemoryAcquireHonoursContext(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	held, err := m.Acquire(ctx, 9)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := m.Acquire(short, 9); err == nil {
		t.Fatalf("expected timeout while key is held")
	}
	_ = held.Release(ctx)
	_ = held.Release(ctx) // second release is a no-op
	again, err := m.Acquire(ctx, 9)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = again.Release(ctx)
	if m.held() != 0 {
		t.Fatalf("leaked entries: %d", m.held())
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, Options{})
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, ok := l.(*Memory); !ok {
		t.Fatalf("expected memory locker by default, got %T", l)
	}
	l, err = Open(ctx, Options{Driver: DriverNone})
	if err != nil {
		t.Fatalf("open none: %v", err)
	}
	lease, err := l.Acquire(ctx, 1)
	if err != nil || lease.Release(ctx) != nil || l.Close() != nil {
		t.Fatalf("noop locker misbehaved")
	}
	if _, err := Open(ctx, Options{Driver: "etcd"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
