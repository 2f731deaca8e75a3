//go:build linux || darwin || freebsd

package storage

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lookupVolume identifies the volume of path by device number and walks up to
// the mount point, the highest ancestor on the same device
func lookupVolume(path string) (volumeInfo, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return volumeInfo{}, err
	}
	dev := uint64(st.Dev)

	mount := path
	for {
		parent := filepath.Dir(mount)
		if parent == mount {
			break
		}
		var pst unix.Stat_t
		if err := unix.Stat(parent, &pst); err != nil || uint64(pst.Dev) != dev {
			break
		}
		mount = parent
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return volumeInfo{}, err
	}

	return volumeInfo{
		id:         fmt.Sprintf("dev:%d", dev),
		mountPoint: mount,
		usable:     int64(fs.Bavail) * int64(fs.Bsize),
	}, nil
}
