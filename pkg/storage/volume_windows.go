//go:build windows

package storage

import (
	"strings"

	"golang.org/x/sys/windows"
)

// lookupVolume identifies the volume of path by its volume mount path
func lookupVolume(path string) (volumeInfo, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return volumeInfo{}, err
	}

	buf := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumePathName(p, &buf[0], uint32(len(buf))); err != nil {
		return volumeInfo{}, err
	}
	mount := windows.UTF16ToString(buf)

	root, err := windows.UTF16PtrFromString(mount)
	if err != nil {
		return volumeInfo{}, err
	}
	var available, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(root, &available, &total, &free); err != nil {
		return volumeInfo{}, err
	}

	return volumeInfo{
		id:         strings.ToLower(mount),
		mountPoint: mount,
		usable:     int64(available),
	}, nil
}
