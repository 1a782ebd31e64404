package volume

import "github.com/parxive/parx/internal/parxerr"

// FileLock is an advisory, exclusive, non-blocking OS-level file lock. It
// guards volume writes during encode and the repair critical section.
// Contention fails fast (KindLockContended); there is no retry or wait —
// callers re-run the command.
type FileLock struct {
	path string
	fd   int
	open bool
}

// NewFileLock returns a lock bound to path. The backing file is created if
// absent; Lock/Unlock are separate steps so callers can hold the lock across
// several operations.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock acquires the exclusive lock or fails immediately with
// parxerr.KindLockContended if another process holds it.
func (l *FileLock) Lock() error {
	const op = "volume.FileLock.Lock"
	fd, err := openLockFile(l.path)
	if err != nil {
		return parxerr.New(parxerr.KindIO, op, err)
	}
	if err := flockExclusiveNB(fd); err != nil {
		closeLockFile(fd)
		if err == errWouldBlock {
			return parxerr.New(parxerr.KindLockContended, op, err)
		}
		return parxerr.New(parxerr.KindIO, op, err)
	}
	l.fd = fd
	l.open = true
	return nil
}

// Unlock releases the lock. It is a no-op if the lock was never acquired.
func (l *FileLock) Unlock() error {
	if !l.open {
		return nil
	}
	l.open = false
	if err := flockUnlock(l.fd); err != nil {
		closeLockFile(l.fd)
		return parxerr.New(parxerr.KindIO, "volume.FileLock.Unlock", err)
	}
	return closeLockFile(l.fd)
}
