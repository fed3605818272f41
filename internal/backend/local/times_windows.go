package local

import (
	"io/fs"
	"syscall"
	"time"
)

// extraTimes reports last access and creation time.
func extraTimes(_ string, info fs.FileInfo) (atime, ctime time.Time) {
	d, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return time.Time{}, time.Time{}
	}
	return time.Unix(0, d.LastAccessTime.Nanoseconds()).UTC(),
		time.Unix(0, d.CreationTime.Nanoseconds()).UTC()
}
