package discovery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/moby/moby/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storman/internal/logger"
	"storman/internal/store"
)

type fakeLister struct {
	containers []container.Summary
	err        error
}

func (f *fakeLister) ListContainers(_ context.Context) ([]container.Summary, error) {
	return f.containers, f.err
}

func syncTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func TestSyncOnce_WritesDiscoveredRegistrations(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "registrations.db"))
	require.NoError(t, err)
	defer st.Close()

	lister := &fakeLister{containers: []container.Summary{
		{
			ID: "c1",
			Labels: map[string]string{
				"storage-manager.0.volume":       "protected-container_logs",
				"storage-manager.0.path":         "/",
				"storage-manager.0.algorithm":    "remove_before_date",
				"storage-manager.0.max_age_days": "14",
				"storage-manager.0.description":  "keep logs",
			},
		},
		{ID: "c2", Labels: map[string]string{"unrelated": "x"}},
	}}

	syncer := NewSyncer(lister, st, syncTestLogger(t))
	synced, err := syncer.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	rows, err := st.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "protected-container_logs", rows[0].VolumeName)
	assert.Equal(t, "remove_before_date", rows[0].Algorithm)
	assert.Equal(t, "14", rows[0].Params["max_age_days"])
	assert.Equal(t, "keep logs", rows[0].Description)
}

func TestSyncOnce_ListerFailure(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "registrations.db"))
	require.NoError(t, err)
	defer st.Close()

	syncer := NewSyncer(&fakeLister{err: errors.New("daemon down")}, st, syncTestLogger(t))
	_, err = syncer.SyncOnce(context.Background())
	assert.Error(t, err)
}

func TestSyncer_StartValidatesSchedule(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "registrations.db"))
	require.NoError(t, err)
	defer st.Close()

	syncer := NewSyncer(&fakeLister{}, st, syncTestLogger(t))

	assert.Error(t, syncer.Start(context.Background(), "not a schedule"))

	require.NoError(t, syncer.Start(context.Background(), "@every 15m"))
	assert.NoError(t, syncer.Start(context.Background(), "@every 15m"), "second start is a no-op")
	syncer.Stop()
	syncer.Stop()
}
