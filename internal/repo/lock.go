package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockPollInterval = 50 * time.Millisecond

// FileLock is an advisory lock on a sibling "<path>.lock" file. A zero timeout
// means a single attempt. Each Lock call opens its own handle, so one FileLock
// may be shared by concurrent callers.
type FileLock struct {
	path    string
	timeout time.Duration
}

func NewFileLock(path string, timeout time.Duration) *FileLock {
	return &FileLock{
		path:    path + ".lock",
		timeout: timeout,
	}
}

func (l *FileLock) Lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(l.path)
	var (
		locked bool
		err    error
	)
	if l.timeout <= 0 {
		locked, err = fl.TryLock()
	} else {
		ctx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		locked, err = fl.TryLockContext(ctx, lockPollInterval)
	}

	if errors.Is(err, context.DeadlineExceeded) || (err == nil && !locked) {
		return nil, fmt.Errorf("%w: %s is held by another process", ErrorBusy, l.path)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return func() { _ = fl.Unlock() }, nil
}
