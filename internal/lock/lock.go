// Package lock serialises asset operations per record. Concurrent attach or
// detach calls on the same record id queue behind one another; different ids
// never contend.
package lock

import (
	"context"
	"fmt"
	"time"
)

// Driver selects a Locker implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // process-local
	DriverSQLite   Driver = "sqlite"   // lease rows in a shared SQLite file
	DriverPostgres Driver = "postgres" // pg_advisory_lock
	DriverNone     Driver = "none"     // no serialisation
)

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out per-key leases.
type Locker interface {
	// Acquire blocks until key is free or ctx is done.
	Acquire(ctx context.Context, key int64) (Lease, error)
	Close() error
}

// Options configures Open.
type Options struct {
	Driver       Driver
	SQLitePath   string
	PostgresDSN  string
	TTL          time.Duration // sqlite lease lifetime
	PollInterval time.Duration // sqlite retry cadence
}

// Open builds the Locker named by opts.Driver (memory when empty).
func Open(ctx context.Context, opts Options) (Locker, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverNone:
		return Noop{}, nil
	case DriverSQLite:
		return OpenSQLite(ctx, opts.SQLitePath, opts.TTL, opts.PollInterval)
	case DriverPostgres:
		return OpenPostgres(ctx, opts.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown lock driver %s", opts.Driver)
	}
}

// Noop never blocks.
type Noop struct{}

func (Noop) Acquire(context.Context, int64) (Lease, error) { return noopLease{}, nil }
func (Noop) Close() error                                  { return nil }

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }
