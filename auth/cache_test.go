package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreAndLoadRoundtrip(t *testing.T) {
	c := NewCache(t.TempDir())
	tty := uint64(42)

	rec := &Record{AuthUser: 1000, Target: 0, CreatedAt: time.Now().UnixNano(), TtyDeviceID: &tty}
	require.NoError(t, c.Store(rec))

	got, err := c.Load(1000)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, uint64(42), *got.TtyDeviceID)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	c := NewCache(t.TempDir())
	got, err := c.Load(999)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestValidRejectsExpiredRecord(t *testing.T) {
	tty := uint64(7)
	rec := &Record{AuthUser: 1, CreatedAt: time.Now().Add(-1 * time.Hour).UnixNano(), TtyDeviceID: &tty}
	require.False(t, Valid(rec, 15*time.Minute, Session{TtyDeviceID: &tty}, time.Now()))
}

func TestValidAcceptsFreshMatchingTty(t *testing.T) {
	tty := uint64(7)
	rec := &Record{AuthUser: 1, CreatedAt: time.Now().UnixNano(), TtyDeviceID: &tty}
	require.True(t, Valid(rec, 15*time.Minute, Session{TtyDeviceID: &tty}, time.Now()))
}

func TestInvalidateClearsTimestampWithoutDeleting(t *testing.T) {
	c := NewCache(t.TempDir())
	rec := &Record{AuthUser: 5, CreatedAt: time.Now().UnixNano()}
	require.NoError(t, c.Store(rec))

	require.NoError(t, c.Invalidate(5))

	got, err := c.Load(5)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.False(t, Valid(got, 15*time.Minute, Session{}, time.Now()))
}

func TestRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	rec := &Record{AuthUser: 9, CreatedAt: time.Now().UnixNano()}
	require.NoError(t, c.Store(rec))
	require.NoError(t, c.Remove(9))

	_, err := c.Load(9)
	require.NoError(t, err)

	require.NoFileExists(t, filepath.Join(dir, "9"))
}
