package lock

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/arbitros?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Postgres holds session-level advisory locks keyed by record id. Each lease
// pins one pooled connection until released, since the lock belongs to the
// session that took it.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with dsn (falls back to defaultDSN).
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Acquire(ctx context.Context, key int64) (Lease, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisory lock %d: %w", key, err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("advisory lock %d: %w", key, err)
	}
	return &pgLease{conn: conn, key: key}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

type pgLease struct {
	conn *sql.Conn
	key  int64
	once sync.Once
	err  error
}

func (l *pgLease) Release(ctx context.Context) error {
	l.once.Do(func() {
		defer func() { _ = l.conn.Close() }()
		if _, err := l.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key); err != nil {
			l.err = fmt.Errorf("advisory unlock %d: %w", l.key, err)
			// Discard the session instead of pooling it; ending it frees the lock.
			_ = l.conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	})
	return l.err
}
