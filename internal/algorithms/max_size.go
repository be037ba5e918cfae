package algorithms

import (
	"sort"

	"storman/internal/scanner"
)

// MaxSize keeps the total bytes under a target below max_bytes. Eviction
// order follows sort_by: mtime and ctime evict the oldest files first, size
// evicts the largest files first.
type MaxSize struct{}

func (a *MaxSize) ShouldClean(targetPath string, params Params) (bool, error) {
	maxBytes, err := maxBytesParam(params)
	if err != nil {
		return false, err
	}
	if _, err := params.SortBy(); err != nil {
		return false, err
	}

	files, err := scanner.ListFiles(targetPath)
	if err != nil {
		return false, err
	}
	return scanner.TotalSize(files) > maxBytes, nil
}

func (a *MaxSize) Clean(targetPath string, params Params) (Result, error) {
	maxBytes, err := maxBytesParam(params)
	if err != nil {
		return Result{}, err
	}
	sortBy, err := params.SortBy()
	if err != nil {
		return Result{}, err
	}

	files, err := scanner.ListFiles(targetPath)
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, nil
	}

	if sortBy == SortBySize {
		// Largest first, so each eviction reclaims the most space.
		sort.SliceStable(files, func(i, j int) bool {
			return rankLess(files[j], files[i], sortBy)
		})
	} else {
		sort.SliceStable(files, func(i, j int) bool {
			return rankLess(files[i], files[j], sortBy)
		})
	}

	current := scanner.TotalSize(files)
	result := Result{}

	for _, file := range files {
		if current <= maxBytes {
			break
		}
		freed, err := scanner.Remove(file)
		if err != nil {
			// Transient failure: the file stays and keeps counting
			// against the cap.
			continue
		}
		current -= file.Size
		result.FilesRemoved++
		result.BytesFreed += freed
	}

	result.Cleaned = result.FilesRemoved > 0
	return result, nil
}

func maxBytesParam(params Params) (int64, error) {
	maxBytes, present, err := params.Int("max_bytes")
	if err != nil {
		return 0, err
	}
	if !present || maxBytes <= 0 {
		return 0, &ConfigError{Param: "max_bytes", Message: "must be greater than 0"}
	}
	return maxBytes, nil
}
