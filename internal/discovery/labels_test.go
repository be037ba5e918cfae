package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabels_ExtractsIndexedCandidates(t *testing.T) {
	labels := map[string]string{
		"storage-manager.0.volume":       "protected-container_logs",
		"storage-manager.0.path":         "/",
		"storage-manager.0.algorithm":    "remove_before_date",
		"storage-manager.0.max_age_days": "14",
		"storage-manager.1.volume":       "camera-footage",
		"storage-manager.1.path":         "/recordings",
		"storage-manager.1.algorithm":    "max_size",
		"storage-manager.1.max_bytes":    "12345",
		"other.label":                    "ignored",
	}

	out := ParseLabels(labels)
	require.Len(t, out, 2)

	first := out[0]
	assert.Equal(t, "protected-container_logs", first.VolumeName)
	assert.Equal(t, "/", first.Path)
	assert.Equal(t, "remove_before_date", first.Algorithm)
	assert.Equal(t, "14", first.Params["max_age_days"])

	second := out[1]
	assert.Equal(t, "camera-footage", second.VolumeName)
	assert.Equal(t, "max_size", second.Algorithm)
	assert.Equal(t, "12345", second.Params["max_bytes"])
}

func TestParseLabels_DescriptionIsNotAParam(t *testing.T) {
	out := ParseLabels(map[string]string{
		"storage-manager.0.volume":      "logs",
		"storage-manager.0.path":        "/app",
		"storage-manager.0.algorithm":   "keep_n_latest",
		"storage-manager.0.keep_count":  "5",
		"storage-manager.0.description": "rotate app logs",
	})

	require.Len(t, out, 1)
	assert.Equal(t, "rotate app logs", out[0].Description)
	assert.Equal(t, "5", out[0].Params["keep_count"])
	assert.NotContains(t, out[0].Params, "description")
}

func TestParseLabels_DropsIncompleteCandidates(t *testing.T) {
	out := ParseLabels(map[string]string{
		// index 0 lacks algorithm, index 1 lacks volume
		"storage-manager.0.volume":    "logs",
		"storage-manager.0.path":      "/app",
		"storage-manager.1.path":      "/cache",
		"storage-manager.1.algorithm": "max_size",
		// index 2 is complete
		"storage-manager.2.volume":    "cache",
		"storage-manager.2.path":      "/",
		"storage-manager.2.algorithm": "max_size",
	})

	require.Len(t, out, 1)
	assert.Equal(t, "cache", out[0].VolumeName)
}

func TestParseLabels_EmptyAndNilInput(t *testing.T) {
	assert.Nil(t, ParseLabels(nil))
	assert.Nil(t, ParseLabels(map[string]string{}))
	assert.Nil(t, ParseLabels(map[string]string{"unrelated": "x"}))
}

func TestParseLabels_IndexOrder(t *testing.T) {
	out := ParseLabels(map[string]string{
		"storage-manager.10.volume":    "ten",
		"storage-manager.10.path":      "/",
		"storage-manager.10.algorithm": "max_size",
		"storage-manager.2.volume":     "two",
		"storage-manager.2.path":       "/",
		"storage-manager.2.algorithm":  "max_size",
	})

	require.Len(t, out, 2)
	assert.Equal(t, "two", out[0].VolumeName)
	assert.Equal(t, "ten", out[1].VolumeName)
}
