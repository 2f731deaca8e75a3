//go:build !linux && !darwin && !freebsd && !windows

package storage

import "errors"

var errVolumeUnsupported = errors.New("usable space is not supported on this platform")

func lookupVolume(path string) (volumeInfo, error) {
	return volumeInfo{}, errVolumeUnsupported
}
