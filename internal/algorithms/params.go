package algorithms

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Params is the open policy parameter mapping. Values arrive untyped: JSON
// bodies produce float64 numbers, container labels produce strings, and
// stored rows round-trip through JSON. Each accessor coerces accordingly.
type Params map[string]any

// ConfigError reports invalid or missing policy parameters. It is surfaced
// identically from ShouldClean and Clean so callers validating upfront see
// consistent errors.
type ConfigError struct {
	Param   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Message)
}

// Valid sort_by values shared by max_size and keep_n_latest.
const (
	SortByMtime = "mtime"
	SortByCtime = "ctime"
	SortBySize  = "size"
)

// Int reads an integer parameter, coercing from JSON numbers and label
// strings. The second return reports whether the key was present.
func (p Params) Int(key string) (int64, bool, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return 0, false, nil
	}

	switch v := raw.(type) {
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, true, &ConfigError{Param: key, Message: fmt.Sprintf("%v is not an integer", v)}
		}
		return int64(v), true, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, true, &ConfigError{Param: key, Message: fmt.Sprintf("%q is not an integer", v)}
		}
		return n, true, nil
	default:
		return 0, true, &ConfigError{Param: key, Message: fmt.Sprintf("unsupported type %T", raw)}
	}
}

// String reads a string parameter. Missing and nil read as empty.
func (p Params) String(key string) string {
	raw, ok := p[key]
	if !ok || raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}

// SortBy validates the shared sort_by parameter, defaulting to mtime.
func (p Params) SortBy() (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(p.String("sort_by")))
	if normalized == "" {
		return SortByMtime, nil
	}
	switch normalized {
	case SortByMtime, SortByCtime, SortBySize:
		return normalized, nil
	default:
		return "", &ConfigError{
			Param:   "sort_by",
			Message: fmt.Sprintf("%q is not one of ctime, mtime, size", p.String("sort_by")),
		}
	}
}

// Threshold layouts accepted for before_date, tried in order. Naive
// timestamps are taken as UTC.
var thresholdLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Threshold resolves the remove_before_date cutoff: before_date takes
// precedence when present, otherwise max_age_days is subtracted from the
// current UTC time. Neither present is a configuration error.
func (p Params) Threshold(now time.Time) (time.Time, error) {
	if raw := strings.TrimSpace(p.String("before_date")); raw != "" {
		for _, layout := range thresholdLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, &ConfigError{
			Param:   "before_date",
			Message: fmt.Sprintf("%q is not an ISO-8601 timestamp", raw),
		}
	}

	days, present, err := p.Int("max_age_days")
	if err != nil {
		return time.Time{}, err
	}
	if present {
		return now.UTC().AddDate(0, 0, -int(days)), nil
	}

	return time.Time{}, &ConfigError{
		Param:   "before_date",
		Message: "either before_date or max_age_days must be provided",
	}
}
