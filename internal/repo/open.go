package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DriverCSV      = "csv"
	DriverYAML     = "yaml"
	DriverTOML     = "toml"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver      string
	Path        string
	DSN         string
	LockTimeout time.Duration
}

// Backend bundles a store with the locker that guards it.
type Backend struct {
	Store  Store
	Locker Locker
	close  func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func Open(ctx context.Context, opts Options) (*Backend, error) {
	switch opts.Driver {
	case DriverCSV, "":
		return fileBackend(NewCSVStore(opts.Path), opts), nil
	case DriverYAML:
		return fileBackend(NewDocumentStore(opts.Path, YAMLCodec), opts), nil
	case DriverTOML:
		return fileBackend(NewDocumentStore(opts.Path, TOMLCodec), opts), nil
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		s, err := OpenSQLiteStore(opts.Path)
		if err != nil {
			return nil, err
		}
		b := fileBackend(s, opts)
		b.close = s.Close
		return b, nil
	case DriverPostgres:
		pool, err := pgxpool.New(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s := NewPostgresStore(pool, opts.LockTimeout)
		if err := s.Init(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("initialize postgres: %w", err)
		}
		return &Backend{
			Store:  s,
			Locker: s,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}

func fileBackend(s Store, opts Options) *Backend {
	return &Backend{
		Store:  s,
		Locker: NewFileLock(opts.Path, opts.LockTimeout),
	}
}
