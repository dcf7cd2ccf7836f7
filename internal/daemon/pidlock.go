package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by AcquirePidLock when a live process
// already holds the lock.
var ErrAlreadyRunning = fmt.Errorf("daemon already running")

// PidLock couples a flock-based exclusive file lock with a PID file
// written alongside it, so a second daemon process can tell a live
// holder from a stale leftover without needing the lock itself (e.g.
// for a status command run by a different user).
type PidLock struct {
	path string
	fl   *flock.Flock
}

// AcquirePidLock takes the exclusive lock at path, writing the current
// PID into the file on success. If the lock is held by another
// process it returns ErrAlreadyRunning; only the lock decides this, not
// the PID recorded in the file. An unlocked leftover file is taken over
// and overwritten, whatever PID it names. Socket binding must happen only after this
// returns successfully, so the lock-then-bind order guarantees a single
// winner under concurrent starts.
func AcquirePidLock(path string) (*PidLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating pid lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring pid lock: %w", err)
	}
	if !ok {
		if pid, ferr := readPid(path); ferr == nil && processAlive(pid) {
			return nil, ErrAlreadyRunning
		}
		return nil, ErrAlreadyRunning
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("writing pid file: %w", err)
	}

	return &PidLock{path: path, fl: fl}, nil
}

// Release unlocks and removes the PID file.
func (l *PidLock) Release() error {
	err := l.fl.Unlock()
	_ = os.Remove(l.path)
	return err
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// processAlive reports whether pid names a live process on this host.
// Sending signal 0 performs only the existence/permission check without
// delivering a signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
