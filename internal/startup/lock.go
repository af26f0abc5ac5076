package startup

import (
	"errors"
	"fmt"
	"path/filepath"

	"media-cache/internal/logging"

	"github.com/gofrs/flock"
)

// LockFile is created in the cache directory while a server owns it.
const LockFile = "media-cache.lock"

// ErrCacheDirLocked is returned when another process holds the cache directory.
var ErrCacheDirLocked = errors.New("cache directory is in use by another process")

// DirLock is an exclusive lock on a cache directory.
type DirLock struct {
	fl *flock.Flock
}

// LockCacheDir takes the cache directory lock without blocking. Only one
// server may own a store.
func LockCacheDir(dir string) (*DirLock, error) {
	path := filepath.Join(dir, LockFile)
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrCacheDirLocked, path)
	}

	logging.Debug("  [OK] Acquired cache directory lock %s", path)
	return &DirLock{fl: fl}, nil
}

// Release drops the lock. The lock file is left in place.
func (l *DirLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
