package lock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	defaultLeaseTTL     = 30 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// SQLite grants leases by owning a row in a shared database file. A live
// lease is renewed every third of its TTL until released; one whose holder
// died expires after the TTL so it cannot wedge a record.
type SQLite struct {
	db   *sql.DB
	ttl  time.Duration
	poll time.Duration
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the lease table at path.
func OpenSQLite(ctx context.Context, path string, ttl, poll time.Duration) (*SQLite, error) {
	if path == "" {
		path = "arbitros-locks.db"
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS record_locks (
		record_id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create lock table: %w", err)
	}
	return &SQLite{db: db, ttl: ttl, poll: poll, now: time.Now}, nil
}

func (s *SQLite) Acquire(ctx context.Context, key int64) (Lease, error) {
	owner, err := newOwner()
	if err != nil {
		return nil, err
	}
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		ok, err := s.tryAcquire(ctx, key, owner)
		if err != nil {
			return nil, err
		}
		if ok {
			l := &sqliteLease{s: s, key: key, owner: owner, stop: make(chan struct{}), done: make(chan struct{})}
			go l.heartbeat()
			return l, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SQLite) tryAcquire(ctx context.Context, key int64, owner string) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO record_locks (record_id, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE record_locks.expires_at <= ?`,
		key, owner, now.Add(s.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("acquire lease %d: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lease %d: %w", key, err)
	}
	return n == 1, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type sqliteLease struct {
	s     *SQLite
	key   int64
	owner string

	stop     chan struct{}
	done     chan struct{}
	haltOnce sync.Once
	relOnce  sync.Once
	err      error
}

func (l *sqliteLease) heartbeat() {
	defer close(l.done)
	t := time.NewTicker(l.s.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.s.ttl)
			// A failed renewal is retried on the next tick; the lease only
			// lapses if renewals keep failing for a whole TTL.
			_, _ = l.s.db.ExecContext(ctx, `UPDATE record_locks SET expires_at = ? WHERE record_id = ? AND owner = ?`,
				l.s.now().Add(l.s.ttl).UnixMilli(), l.key, l.owner)
			cancel()
		}
	}
}

// halt stops renewing without giving the row up.
func (l *sqliteLease) halt() {
	l.haltOnce.Do(func() {
		close(l.stop)
		<-l.done
	})
}

func (l *sqliteLease) Release(ctx context.Context) error {
	l.relOnce.Do(func() {
		l.halt()
		if _, err := l.s.db.ExecContext(ctx, `DELETE FROM record_locks WHERE record_id = ? AND owner = ?`, l.key, l.owner); err != nil {
			l.err = fmt.Errorf("release lease %d: %w", l.key, err)
		}
	})
	return l.err
}

func newOwner() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("lease owner: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
