// Package lockfile provides coarse advisory locking over a workspace's
// metadata directory via a raw flock (spec.md §5: shared lock for
// read-only operations, exclusive lock for mutating ones). Grounded on
// the corpus's one example of real-world flock usage, trillian-tessera's
// posix storage lockFile: open the lock file, then block in
// syscall.FcntlFlock(F_SETLKW) retrying on EINTR. No third-party flock
// library appears anywhere in the retrieved corpus, so this is a
// justified standard-library use (SPEC_FULL.md §10.6).
package lockfile

import (
	"io"
	"os"
	"syscall"
)

// Lock blocks until it holds an exclusive advisory lock on path (created
// if absent), returning an unlock function. Use for mutating commands
// (stage, snapshot, branch, checkout, merge).
//
// The lock is released by closing the underlying file descriptor — any
// other Close on the same fd from this process would also release it, so
// path should be a dedicated lock file, never a file used for anything
// else.
func Lock(path string) (unlock func() error, err error) {
	return lock(path, syscall.F_WRLCK)
}

// LockShared blocks until it holds a shared advisory lock on path
// (created if absent), returning an unlock function. Use for read-only
// commands (status, log, show) that still touch on-disk derived state
// (e.g. the index cache) and must not race a concurrent exclusive
// holder. Any number of shared holders may hold the lock at once; it
// only excludes an exclusive holder, and vice versa.
func LockShared(path string) (unlock func() error, err error) {
	return lock(path, syscall.F_RDLCK)
}

func lock(path string, lockType int16) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	flockT := syscall.Flock_t{
		Type:   lockType,
		Whence: io.SeekStart,
		Start:  0,
		Len:    0,
	}
	for {
		if err := syscall.FcntlFlock(f.Fd(), syscall.F_SETLKW, &flockT); err != syscall.EINTR {
			if err != nil {
				f.Close()
				return nil, err
			}
			return f.Close, nil
		}
	}
}
