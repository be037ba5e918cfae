// Package algorithms implements the cleanup policies applied to registered
// storage targets. Each policy exposes a cheap ShouldClean predicate and a
// Clean action; both validate their parameters the same way, and "nothing to
// clean" is a normal result, never an error.
package algorithms

import (
	"sort"

	"storman/internal/scanner"
)

// Result describes the outcome of a single Clean invocation.
type Result struct {
	Cleaned      bool  `json:"cleaned"`
	FilesRemoved int   `json:"files_removed"`
	BytesFreed   int64 `json:"bytes_freed"`
}

// Algorithm is a named cleanup policy.
type Algorithm interface {
	// ShouldClean reports whether the target currently warrants a Clean.
	// Parameter validation failures are returned even when the predicate
	// would otherwise be false.
	ShouldClean(targetPath string, params Params) (bool, error)

	// Clean removes files according to the policy and reports what was
	// removed. It returns an error only for bad configuration; an empty or
	// already-compliant target yields Cleaned=false.
	Clean(targetPath string, params Params) (Result, error)
}

// registry is the closed set of policies, fixed at process start.
var registry = map[string]Algorithm{
	"max_size":           &MaxSize{},
	"remove_before_date": &RemoveBeforeDate{},
	"keep_n_latest":      &KeepNLatest{},
}

// Lookup resolves a policy by its registered name.
func Lookup(name string) (Algorithm, bool) {
	alg, ok := registry[name]
	return alg, ok
}

// Names returns the registered policy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// rankLess orders two entries by the given sort key, ascending. Stable sorts
// built on it preserve filesystem enumeration order for ties.
func rankLess(a, b scanner.FileEntry, key string) bool {
	switch key {
	case SortByCtime:
		return a.ChangeTime.Before(b.ChangeTime)
	case SortBySize:
		return a.Size < b.Size
	default:
		return a.ModTime.Before(b.ModTime)
	}
}
