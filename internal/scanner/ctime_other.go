//go:build !linux

package scanner

import (
	"io/fs"
	"time"
)

// changeTime falls back to the modification time on platforms that do not
// expose an inode change time through the stat result.
func changeTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}
