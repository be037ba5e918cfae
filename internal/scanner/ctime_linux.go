//go:build linux

package scanner

import (
	"io/fs"
	"syscall"
	"time"
)

// changeTime reads the inode change time from the underlying stat data.
func changeTime(info fs.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
	}
	return info.ModTime()
}
