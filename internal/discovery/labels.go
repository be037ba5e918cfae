// Package discovery builds cleanup registrations from container labels.
// Labels of the form storage-manager.<index>.<field> are grouped by index
// into candidates; a candidate needs volume, path and algorithm to be
// registered, every other field becomes a policy parameter.
package discovery

import (
	"sort"
	"strconv"

	"github.com/wasilibs/go-re2"

	"storman/internal/algorithms"
)

var labelPattern = re2.MustCompile(`^storage-manager\.(\d+)\.(.+)$`)

// Candidate is one registration extracted from a container's labels.
type Candidate struct {
	VolumeName  string
	Path        string
	Algorithm   string
	Params      algorithms.Params
	Description string
}

// ParseLabels extracts registration candidates from one container's label
// set. Incomplete candidates (missing volume, path or algorithm) are dropped.
// Candidates are returned in label index order.
func ParseLabels(labels map[string]string) []Candidate {
	if len(labels) == 0 {
		return nil
	}

	buckets := make(map[int]map[string]string)
	for key, value := range labels {
		match := labelPattern.FindStringSubmatch(key)
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if buckets[index] == nil {
			buckets[index] = make(map[string]string)
		}
		buckets[index][match[2]] = value
	}

	indexes := make([]int, 0, len(buckets))
	for index := range buckets {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	var out []Candidate
	for _, index := range indexes {
		fields := buckets[index]
		if fields["volume"] == "" || fields["path"] == "" || fields["algorithm"] == "" {
			continue
		}

		params := algorithms.Params{}
		for field, value := range fields {
			switch field {
			case "volume", "path", "algorithm", "description":
			default:
				params[field] = value
			}
		}

		out = append(out, Candidate{
			VolumeName:  fields["volume"],
			Path:        fields["path"],
			Algorithm:   fields["algorithm"],
			Params:      params,
			Description: fields["description"],
		})
	}
	return out
}
