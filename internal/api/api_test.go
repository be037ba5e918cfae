package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/moby/moby/api/types/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storman/internal/algorithms"
	"storman/internal/logger"
	"storman/internal/store"
)

type fakeVolumeLister struct {
	volumes []volume.Volume
	err     error
}

func (f *fakeVolumeLister) ListVolumes(_ context.Context) ([]volume.Volume, error) {
	return f.volumes, f.err
}

type fakeScheduler struct {
	running bool
}

func (f *fakeScheduler) IsRunning() bool { return f.running }

func newTestServer(t *testing.T, volumes VolumeLister, running bool) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "storman.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	handler := NewHandler(st, volumes, &fakeScheduler{running: running}, log)
	srv := httptest.NewServer(NewRouter(handler, log, false))
	t.Cleanup(srv.Close)

	return srv, st
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRegisterAndUnregisterFlow(t *testing.T) {
	srv, st := newTestServer(t, nil, true)

	resp := postJSON(t, srv.URL+"/api/register", map[string]any{
		"volume_name": "protected-container_logs",
		"path":        "/",
		"algorithm":   "remove_before_date",
		"params":      map[string]any{"max_age_days": 14},
		"description": "keep recent logs",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	payload := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "ok", payload["status"])

	regs, err := st.List(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "protected-container_logs", regs[0].VolumeName)

	// Client double-encodes the path so the slash survives routing.
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/register/protected-container_logs/%252F", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	regs, err = st.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	srv, _ := newTestServer(t, nil, true)

	tests := []struct {
		name    string
		body    map[string]any
		wantErr string
	}{
		{
			name:    "missing volume name",
			body:    map[string]any{"path": "/", "algorithm": "remove_before_date", "params": map[string]any{}},
			wantErr: "volume_name is required",
		},
		{
			name:    "missing path",
			body:    map[string]any{"volume_name": "v", "algorithm": "remove_before_date"},
			wantErr: "path is required",
		},
		{
			name:    "missing algorithm",
			body:    map[string]any{"volume_name": "v", "path": "/"},
			wantErr: "algorithm is required",
		},
		{
			name:    "unknown algorithm",
			body:    map[string]any{"volume_name": "v", "path": "/", "algorithm": "shred_everything"},
			wantErr: "unknown algorithm",
		},
		{
			name:    "params not an object",
			body:    map[string]any{"volume_name": "v", "path": "/", "algorithm": "max_size", "params": []int{1, 2}},
			wantErr: "params must be an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/register", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			payload := decodeBody[map[string]string](t, resp)
			assert.Contains(t, payload["error"], tt.wantErr)
		})
	}
}

func TestUnregisterMissingReturns404(t *testing.T) {
	srv, _ := newTestServer(t, nil, true)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/register/ghost-volume/logs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthReportsSchedulerState(t *testing.T) {
	srv, _ := newTestServer(t, nil, false)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, false, payload["scheduler_running"])
}

func TestVolumesMergesEngineAndRegisteredEntries(t *testing.T) {
	lister := &fakeVolumeLister{volumes: []volume.Volume{
		{Name: "protected-container_logs", Driver: "local", CreatedAt: "2026-01-01T00:00:00Z"},
		{Name: "orphan-volume", Driver: "local", CreatedAt: "2026-01-02T00:00:00Z"},
	}}
	srv, st := newTestServer(t, lister, true)

	err := st.Upsert(context.Background(), "protected-container_logs", "/", "remove_before_date",
		algorithms.Params{"max_age_days": 14}, "keep logs")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/volumes")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, payload, 2)

	byName := map[string]VolumeInfo{}
	for _, item := range payload {
		byName[item.VolumeName] = item
	}
	require.Len(t, byName["protected-container_logs"].Registrations, 1)
	assert.Equal(t, "remove_before_date", byName["protected-container_logs"].Registrations[0].Algorithm)
	assert.Empty(t, byName["orphan-volume"].Registrations)
}

func TestVolumesRegisteredOnlyVolumeGetsUnknownDriver(t *testing.T) {
	srv, st := newTestServer(t, &fakeVolumeLister{}, true)

	err := st.Upsert(context.Background(), "vanished-volume", "/cache", "max_size",
		algorithms.Params{"max_bytes": 1024}, "")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/volumes")
	require.NoError(t, err)
	payload := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, payload, 1)
	assert.Equal(t, "unknown", payload[0].Driver)
}

func TestVolumesNameFilter(t *testing.T) {
	lister := &fakeVolumeLister{volumes: []volume.Volume{
		{Name: "protected-container_logs", Driver: "local"},
		{Name: "camera-footage", Driver: "local"},
	}}
	srv, _ := newTestServer(t, lister, true)

	resp, err := http.Get(srv.URL + "/api/volumes?name=logs")
	require.NoError(t, err)
	payload := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, payload, 1)
	assert.Equal(t, "protected-container_logs", payload[0].VolumeName)
}

func TestVolumesRegisteredFilter(t *testing.T) {
	lister := &fakeVolumeLister{volumes: []volume.Volume{
		{Name: "protected-container_logs", Driver: "local"},
		{Name: "orphan-volume", Driver: "local"},
	}}
	srv, st := newTestServer(t, lister, true)

	err := st.Upsert(context.Background(), "protected-container_logs", "/", "remove_before_date",
		algorithms.Params{"max_age_days": 14}, "")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/volumes?registered=true")
	require.NoError(t, err)
	registered := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, registered, 1)
	assert.Equal(t, "protected-container_logs", registered[0].VolumeName)

	resp, err = http.Get(srv.URL + "/api/volumes?registered=false")
	require.NoError(t, err)
	unregistered := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, unregistered, 1)
	assert.Equal(t, "orphan-volume", unregistered[0].VolumeName)
}

func TestVolumesSortByBytesAndCreatedAt(t *testing.T) {
	small := t.TempDir()
	big := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(small, "a.bin"), bytes.Repeat([]byte("x"), 10), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(big, "b.bin"), bytes.Repeat([]byte("y"), 100), 0644))

	lister := &fakeVolumeLister{volumes: []volume.Volume{
		{Name: "small-volume", Driver: "local", CreatedAt: "2026-01-01T00:00:00Z", Mountpoint: small},
		{Name: "big-volume", Driver: "local", CreatedAt: "2026-01-02T00:00:00Z", Mountpoint: big},
	}}
	srv, _ := newTestServer(t, lister, true)

	resp, err := http.Get(srv.URL + "/api/volumes?sort=current_bytes")
	require.NoError(t, err)
	byBytes := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, byBytes, 2)
	assert.Equal(t, "big-volume", byBytes[0].VolumeName)
	assert.GreaterOrEqual(t, byBytes[0].CurrentBytes, byBytes[1].CurrentBytes)

	resp, err = http.Get(srv.URL + "/api/volumes?sort=created_at")
	require.NoError(t, err)
	byCreated := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, byCreated, 2)
	assert.Equal(t, "big-volume", byCreated[0].VolumeName)
}

func TestVolumesEngineErrorFallsBackToRegistrations(t *testing.T) {
	lister := &fakeVolumeLister{err: assert.AnError}
	srv, st := newTestServer(t, lister, true)

	err := st.Upsert(context.Background(), "protected-container_logs", "/", "keep_n_latest",
		algorithms.Params{"keep_count": 5}, "")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/volumes")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody[[]VolumeInfo](t, resp)
	require.Len(t, payload, 1)
	assert.Equal(t, "protected-container_logs", payload[0].VolumeName)
}
