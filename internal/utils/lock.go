package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
	lockRetryDelay = 100 * time.Millisecond
)

// CacheLock is an advisory lock file next to the cache database. Writers in
// different faceitfinder processes take it around every blob rewrite.
type CacheLock struct {
	flock *flock.Flock
	path  string
}

// NewCacheLock prepares the lock for dbPath, creating its directory.
func NewCacheLock(dbPath string) (*CacheLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create %s: %w", filepath.Dir(absPath), err)
	}
	lockPath := absPath + lockFileSuffix
	return &CacheLock{flock: flock.New(lockPath), path: lockPath}, nil
}

// Do runs fn with the lock held. If another process holds it, Do waits until
// it is released or ctx is done.
func (l *CacheLock) Do(ctx context.Context, fn func() error) error {
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if !locked {
		Log.Infof("Another faceitfinder process is writing the cache (%s), waiting...", l.path)
		if _, err := l.flock.TryLockContext(ctx, lockRetryDelay); err != nil {
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	defer func() {
		if err := l.flock.Unlock(); err != nil && !os.IsNotExist(err) {
			Log.Warnf("Could not release lock on %s: %v", l.path, err)
		}
	}()
	return fn()
}

// GetAbsDBPath resolves the database path. An empty path means the default
// location under the user's config directory.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "faceitfinder", "cache.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
