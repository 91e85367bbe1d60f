package utils

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	defer Log.SetLevel(logrus.InfoLevel)

	require.NoError(t, SetLogLevel("DEBUG"))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	require.NoError(t, SetLogLevel("warning"))
	assert.Equal(t, logrus.WarnLevel, Log.GetLevel())
	assert.Error(t, SetLogLevel("loud"))
}

func TestCacheLock(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "cache.sqlite")
	l, err := NewCacheLock(dbPath)
	require.NoError(t, err)
	assert.Equal(t, dbPath+".lock", l.path)

	ran := false
	require.NoError(t, l.Do(context.Background(), func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return boom }), boom)
}

func TestCacheLock_WaitHonoursContext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.sqlite")
	holder := flock.New(dbPath + ".lock")
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer holder.Unlock()

	l, err := NewCacheLock(dbPath)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = l.Do(ctx, func() error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetAbsDBPath_Default(t *testing.T) {
	p, err := GetAbsDBPath("")
	require.NoError(t, err)
	assert.Equal(t, "cache.sqlite", filepath.Base(p))
}
