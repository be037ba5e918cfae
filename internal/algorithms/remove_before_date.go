package algorithms

import (
	"time"

	"storman/internal/scanner"
)

// RemoveBeforeDate deletes every file modified strictly before a threshold.
// The threshold is either an absolute before_date or now minus max_age_days.
type RemoveBeforeDate struct{}

func (a *RemoveBeforeDate) ShouldClean(targetPath string, params Params) (bool, error) {
	threshold, err := params.Threshold(time.Now())
	if err != nil {
		return false, err
	}

	files, err := scanner.ListFiles(targetPath)
	if err != nil {
		return false, err
	}
	for _, file := range files {
		if file.ModTime.UTC().Before(threshold) {
			return true, nil
		}
	}
	return false, nil
}

func (a *RemoveBeforeDate) Clean(targetPath string, params Params) (Result, error) {
	threshold, err := params.Threshold(time.Now())
	if err != nil {
		return Result{}, err
	}

	files, err := scanner.ListFiles(targetPath)
	if err != nil {
		return Result{}, err
	}

	result := Result{}
	for _, file := range files {
		if !file.ModTime.UTC().Before(threshold) {
			continue
		}
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
