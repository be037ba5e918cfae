// Package scanner enumerates files under a cleanup target and reports their
// size and time metadata. A missing target is treated as "nothing to clean",
// not an error, and files that vanish mid-scan are silently skipped so a
// concurrent writer cannot fail a whole evaluation.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileEntry describes a single regular file under a cleanup target.
type FileEntry struct {
	Path       string
	Size       int64
	ModTime    time.Time
	ChangeTime time.Time
}

// ListFiles returns every regular file under targetPath. If targetPath is a
// regular file, the result is that single entry. If it does not exist, the
// result is empty with a nil error. Directories are never entries themselves.
func ListFiles(targetPath string) ([]FileEntry, error) {
	info, err := os.Stat(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	if info.Mode().IsRegular() {
		return []FileEntry{newEntry(targetPath, info)}, nil
	}

	var entries []FileEntry
	walkErr := filepath.WalkDir(targetPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entry vanished or became unreadable mid-walk; skip it.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		entries = append(entries, newEntry(path, fi))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return entries, nil
}

// TotalSize re-stats every entry and sums the sizes of those still present.
func TotalSize(entries []FileEntry) int64 {
	var total int64
	for _, entry := range entries {
		info, err := os.Stat(entry.Path)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total
}

// Remove deletes the file behind entry and returns the bytes freed. A file
// already gone counts as removed with zero bytes.
func Remove(entry FileEntry) (int64, error) {
	size := entry.Size
	if info, err := os.Stat(entry.Path); err == nil {
		size = info.Size()
	} else if os.IsNotExist(err) {
		return 0, nil
	}

	if err := os.Remove(entry.Path); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return size, nil
}

func newEntry(path string, info fs.FileInfo) FileEntry {
	return FileEntry{
		Path:       path,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
		ChangeTime: changeTime(info),
	}
}
