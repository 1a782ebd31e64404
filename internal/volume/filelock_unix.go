//go:build unix

package volume

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var errWouldBlock = errors.New("volume: lock held by another process")

func openLockFile(path string) (int, error) {
	return unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o644)
}

func flockExclusiveNB(fd int) error {
	return LockFD(uintptr(fd))
}

func flockUnlock(fd int) error {
	return UnlockFD(uintptr(fd))
}

func closeLockFile(fd int) error {
	return os.NewFile(uintptr(fd), "").Close()
}

// LockFD takes a non-blocking exclusive advisory lock on an already-open
// file descriptor, such as the fd backing a Writer's *os.File. Returns
// errWouldBlock if another process already holds it.
func LockFD(fd uintptr) error {
	err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errWouldBlock
	}
	return err
}

// UnlockFD releases a lock taken with LockFD.
func UnlockFD(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
