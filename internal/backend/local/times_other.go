//go:build !linux && !darwin && !windows

package local

import (
	"io/fs"
	"time"
)

func extraTimes(_ string, _ fs.FileInfo) (atime, ctime time.Time) {
	return time.Time{}, time.Time{}
}
