package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePidLockSucceedsWhenUnheld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	lock, err := AcquirePidLock(path)
	require.NoError(t, err)
	defer lock.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquirePidLockRejectsSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	lock, err := AcquirePidLock(path)
	require.NoError(t, err)
	defer lock.Release()

	_, err = AcquirePidLock(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquirePidLockReclaimsAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	lock, err := AcquirePidLock(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	lock2, err := AcquirePidLock(path)
	require.NoError(t, err)
	defer lock2.Release()
}

func TestAcquirePidLockCleansStalePidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	// A PID file with no corresponding flock held and an implausible PID
	// simulates a crashed daemon's leftover file.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	lock, err := AcquirePidLock(path)
	require.NoError(t, err)
	defer lock.Release()
}
