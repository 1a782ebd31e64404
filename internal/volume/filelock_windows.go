//go:build windows

package volume

import (
	"errors"

	"golang.org/x/sys/windows"
)

var errWouldBlock = errors.New("volume: lock held by another process")

const (
	lockAllBytes = ^uint32(0)
)

func openLockFile(path string) (int, error) {
	h, err := windows.Open(path, windows.O_CREAT|windows.O_RDWR, 0o666)
	if err != nil {
		return 0, err
	}
	return int(h), nil
}

func flockExclusiveNB(fd int) error {
	return LockFD(uintptr(fd))
}

func flockUnlock(fd int) error {
	return UnlockFD(uintptr(fd))
}

func closeLockFile(fd int) error {
	return windows.CloseHandle(windows.Handle(fd))
}

// LockFD takes a non-blocking exclusive advisory lock on an already-open
// file handle. Returns errWouldBlock if another process already holds it.
func LockFD(fd uintptr) error {
	ol := new(windows.Overlapped)
	flags := uint32(windows.LOCKFILE_EXCLUSIVE_LOCK | windows.LOCKFILE_FAIL_IMMEDIATELY)
	err := windows.LockFileEx(windows.Handle(fd), flags, 0, lockAllBytes, lockAllBytes, ol)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return errWouldBlock
	}
	return err
}

// UnlockFD releases a lock taken with LockFD.
func UnlockFD(fd uintptr) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(fd), 0, lockAllBytes, lockAllBytes, ol)
}
