package algorithms

import (
	"sort"

	"storman/internal/scanner"
)

// KeepNLatest retains only the keep_count top-ranked files under a target and
// deletes the rest. Ranking follows sort_by descending, so mtime and ctime
// keep the most recent files and size keeps the largest. keep_count of zero
// keeps nothing.
type KeepNLatest struct{}

func (a *KeepNLatest) ShouldClean(targetPath string, params Params) (bool, error) {
	keepCount, err := keepCountParam(params)
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
	return int64(len(files)) > keepCount, nil
}

func (a *KeepNLatest) Clean(targetPath string, params Params) (Result, error) {
	keepCount, err := keepCountParam(params)
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
	if int64(len(files)) <= keepCount {
		return Result{}, nil
	}

	sort.SliceStable(files, func(i, j int) bool {
		return rankLess(files[j], files[i], sortBy)
	})

	result := Result{}
	for _, file := range files[keepCount:] {
		freed, err := scanner.Remove(file)
		if err != nil {
			continue
		}
		result.FilesRemoved++
		result.BytesFreed += freed
	}

	result.Cleaned = result.FilesRemoved > 0
	return result, nil
}

func keepCountParam(params Params) (int64, error) {
	keepCount, present, err := params.Int("keep_count")
	if err != nil {
		return 0, err
	}
	if !present {
		return 0, &ConfigError{Param: "keep_count", Message: "is required"}
	}
	if keepCount < 0 {
		return 0, &ConfigError{Param: "keep_count", Message: "must be >= 0"}
	}
	return keepCount, nil
}
