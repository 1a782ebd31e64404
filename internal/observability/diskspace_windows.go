//go:build windows

package observability

import "golang.org/x/sys/windows"

func freeBytes(path string) (uint64, error) {
	var freeAvail, total, free uint64
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeAvail, &total, &free); err != nil {
		return 0, err
	}
	return freeAvail, nil
}
