package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// advisoryLockKey identifies the task table in pg_advisory_lock.
const advisoryLockKey int64 = 0x746f646f

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS tasks (
		position     INTEGER NOT NULL,
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		completed_at TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL
	)`

type PostgresStore struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	// held serializes lockers within this process so a waiter never sits on
	// a pooled connection the holder needs for Load and Save.
	held chan struct{}
}

func NewPostgresStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		pool:        pool,
		lockTimeout: lockTimeout,
		held:        make(chan struct{}, 1),
	}
}

// Init creates the tasks table if it is missing.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createTableSQL)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) (*Collection, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, created_at, completed_at, status
		FROM tasks
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[record])
	if err != nil {
		return nil, err
	}

	c := NewCollection()
	for _, rec := range recs {
		t, err := rec.task()
		if err != nil {
			return nil, err
		}
		if err := c.insert(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Save swaps the table contents inside one transaction.
func (s *PostgresStore) Save(ctx context.Context, c *Collection) error {
	recs := make([]record, 0, c.Len())
	for t := range c.All() {
		recs = append(recs, newRecord(t))
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM tasks"); err != nil {
			return err
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"tasks"},
			[]string{"position", "id", "title", "created_at", "completed_at", "status"},
			pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
				r := recs[i]
				return []any{i, r.ID, r.Title, r.CreatedAt, r.CompletedAt, r.Status}, nil
			}),
		)
		return err
	})
}

// Lock holds a session advisory lock on a dedicated pooled connection until
// the returned func is called.
func (s *PostgresStore) Lock(ctx context.Context) (func(), error) {
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	if s.lockTimeout > 0 {
		select {
		case s.held <- struct{}{}:
		case <-ctx.Done():
			return nil, s.lockError(ctx, ctx.Err())
		}
	} else {
		select {
		case s.held <- struct{}{}:
		default:
			return nil, s.lockError(ctx, ErrorBusy)
		}
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		<-s.held
		return nil, s.lockError(ctx, err)
	}
	if s.lockTimeout > 0 {
		_, err = conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockKey)
	} else {
		var ok bool
		err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&ok)
		if err == nil && !ok {
			err = ErrorBusy
		}
	}
	if err != nil {
		conn.Release()
		<-s.held
		return nil, s.lockError(ctx, err)
	}

	return func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey)
		conn.Release()
		<-s.held
	}, nil
}

func (s *PostgresStore) lockError(ctx context.Context, err error) error {
	if errors.Is(err, ErrorBusy) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: advisory lock is held by another session", ErrorBusy)
	}
	return fmt.Errorf("acquire advisory lock: %w", err)
}
