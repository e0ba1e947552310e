package repo

import (
	"context"
	"errors"
)

var (
	ErrorNotFound        = errors.New("not found")
	ErrorMalformedRecord = errors.New("malformed record")
	ErrorBusy            = errors.New("task store is busy")
)

// Store persists the whole task collection at once. Save replaces everything
// previously stored, so a successful Save is always a complete snapshot.
type Store interface {
	Load(ctx context.Context) (*Collection, error)
	Save(ctx context.Context, c *Collection) error
}

// Locker guards one load-mutate-save cycle. The returned unlock func must be
// called on every exit path.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

type NopLocker struct{}

func (NopLocker) Lock(context.Context) (func(), error) { return func() {}, nil }
