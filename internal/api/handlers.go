// Package api exposes the HTTP control plane: registering and removing
// cleanup targets, listing volumes with their registrations, and a health
// endpoint reporting scheduler state.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/moby/moby/api/types/volume"

	"storman/internal/algorithms"
	"storman/internal/logger"
	"storman/internal/scanner"
	"storman/internal/store"
	"storman/internal/version"
)

// VolumeLister is the engine-side volume inventory.
type VolumeLister interface {
	ListVolumes(ctx context.Context) ([]volume.Volume, error)
}

// SchedulerStatus reports whether the background cleanup loop is active.
type SchedulerStatus interface {
	IsRunning() bool
}

// Handler serves the control plane endpoints.
type Handler struct {
	store   *store.Store
	volumes VolumeLister
	sched   SchedulerStatus
	log     *logger.Logger
}

// NewHandler builds a Handler. volumes may be nil when no engine is
// reachable; volume listings then contain registered volumes only.
func NewHandler(st *store.Store, volumes VolumeLister, sched SchedulerStatus, log *logger.Logger) *Handler {
	return &Handler{store: st, volumes: volumes, sched: sched, log: log}
}

type registrationPayload struct {
	VolumeName  string            `json:"volume_name"`
	Path        string            `json:"path"`
	Algorithm   string            `json:"algorithm"`
	Params      algorithms.Params `json:"params"`
	Description string            `json:"description,omitempty"`
}

type registerRequest struct {
	VolumeName  string          `json:"volume_name"`
	Path        string          `json:"path"`
	Algorithm   string          `json:"algorithm"`
	Params      json.RawMessage `json:"params"`
	Description *string         `json:"description"`
}

func parseRegisterRequest(r *http.Request) (registrationPayload, string) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return registrationPayload{}, "invalid JSON body"
	}

	parsed := registrationPayload{
		VolumeName: strings.TrimSpace(req.VolumeName),
		Path:       strings.TrimSpace(req.Path),
		Algorithm:  strings.TrimSpace(req.Algorithm),
		Params:     algorithms.Params{},
	}

	if parsed.VolumeName == "" {
		return registrationPayload{}, "volume_name is required"
	}
	if parsed.Path == "" {
		return registrationPayload{}, "path is required"
	}
	if parsed.Algorithm == "" {
		return registrationPayload{}, "algorithm is required"
	}
	if _, ok := algorithms.Lookup(parsed.Algorithm); !ok {
		return registrationPayload{}, fmt.Sprintf("unknown algorithm %q (valid: %s)",
			parsed.Algorithm, strings.Join(algorithms.Names(), ", "))
	}
	if len(req.Params) > 0 && string(req.Params) != "null" {
		if err := json.Unmarshal(req.Params, &parsed.Params); err != nil {
			return registrationPayload{}, "params must be an object"
		}
	}
	if req.Description != nil {
		parsed.Description = *req.Description
	}

	return parsed, ""
}

// Register creates or replaces a registration keyed by (volume_name, path).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	parsed, problem := parseRegisterRequest(r)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	err := h.store.Upsert(r.Context(), parsed.VolumeName, parsed.Path, parsed.Algorithm, parsed.Params, parsed.Description)
	if err != nil {
		h.log.Error("failed to persist registration", err,
			logger.Field{Key: "volume", Value: parsed.VolumeName},
			logger.Field{Key: "path", Value: parsed.Path},
		)
		writeError(w, http.StatusInternalServerError, "failed to persist registration")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":       "ok",
		"registration": parsed,
	})
}

// Unregister removes the registration for {volume_name}/{path}. The path
// segment may be URL-encoded, including encoded slashes.
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	volumeName := chi.URLParam(r, "volume_name")

	encoded := chi.URLParam(r, "*")
	path, err := url.PathUnescape(encoded)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path encoding")
		return
	}

	removed, err := h.store.Delete(r.Context(), volumeName, path)
	if err == nil && removed == 0 && !strings.HasPrefix(path, "/") {
		// Routing strips the slash separating volume and path, so a stored
		// absolute path arrives without its leading slash.
		removed, err = h.store.Delete(r.Context(), volumeName, "/"+path)
	}
	if err != nil {
		h.log.Error("failed to delete registration", err,
			logger.Field{Key: "volume", Value: volumeName},
			logger.Field{Key: "path", Value: path},
		)
		writeError(w, http.StatusInternalServerError, "failed to delete registration")
		return
	}
	if removed == 0 {
		writeError(w, http.StatusNotFound, "registration not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VolumeInfo is one entry of the merged volume listing.
type VolumeInfo struct {
	VolumeName    string               `json:"volume_name"`
	Driver        string               `json:"driver"`
	CreatedAt     string               `json:"created_at"`
	Mountpoint    string               `json:"mountpoint"`
	CurrentBytes  int64                `json:"current_bytes"`
	Registrations []store.Registration `json:"registrations"`
}

// Volumes merges the engine's volume inventory with the registration store.
// Registered volumes unknown to the engine are reported with driver
// "unknown". Supports the query filters name, registered and sort.
func (h *Handler) Volumes(w http.ResponseWriter, r *http.Request) {
	byVolume, err := h.store.ListByVolume(r.Context())
	if err != nil {
		h.log.Error("failed to list registrations", err)
		writeError(w, http.StatusInternalServerError, "failed to list registrations")
		return
	}

	merged := map[string]*VolumeInfo{}
	for _, vol := range h.listEngineVolumes(r.Context()) {
		merged[vol.Name] = &VolumeInfo{
			VolumeName: vol.Name,
			Driver:     vol.Driver,
			CreatedAt:  vol.CreatedAt,
			Mountpoint: vol.Mountpoint,
		}
	}
	for volumeName, regs := range byVolume {
		info, ok := merged[volumeName]
		if !ok {
			info = &VolumeInfo{VolumeName: volumeName, Driver: "unknown"}
			merged[volumeName] = info
		}
		info.Registrations = regs
	}

	out := make([]VolumeInfo, 0, len(merged))
	for _, info := range merged {
		if info.Registrations == nil {
			info.Registrations = []store.Registration{}
		}
		if info.Mountpoint != "" {
			info.CurrentBytes = usedBytes(info.Mountpoint)
		}
		out = append(out, *info)
	}

	out = filterVolumes(out, r.URL.Query())
	sortVolumes(out, r.URL.Query().Get("sort"))

	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listEngineVolumes(ctx context.Context) []volume.Volume {
	if h.volumes == nil {
		return nil
	}
	vols, err := h.volumes.ListVolumes(ctx)
	if err != nil {
		h.log.Warn("failed to list engine volumes",
			logger.Field{Key: "error", Value: err.Error()},
		)
		return nil
	}
	return vols
}

func usedBytes(mountpoint string) int64 {
	files, err := scanner.ListFiles(mountpoint)
	if err != nil {
		return 0
	}
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

func filterVolumes(vols []VolumeInfo, query url.Values) []VolumeInfo {
	name := strings.ToLower(strings.TrimSpace(query.Get("name")))
	registered := strings.ToLower(strings.TrimSpace(query.Get("registered")))

	filtered := vols[:0]
	for _, vol := range vols {
		if name != "" && !strings.Contains(strings.ToLower(vol.VolumeName), name) {
			continue
		}
		if registered == "true" && len(vol.Registrations) == 0 {
			continue
		}
		if registered == "false" && len(vol.Registrations) > 0 {
			continue
		}
		filtered = append(filtered, vol)
	}
	return filtered
}

func sortVolumes(vols []VolumeInfo, key string) {
	switch key {
	case "current_bytes":
		// Largest consumers first.
		sort.SliceStable(vols, func(i, j int) bool {
			return vols[i].CurrentBytes > vols[j].CurrentBytes
		})
	case "created_at":
		// Engine timestamps are RFC 3339, so newest-first is a string compare.
		sort.SliceStable(vols, func(i, j int) bool {
			return vols[i].CreatedAt > vols[j].CreatedAt
		})
	default:
		sort.SliceStable(vols, func(i, j int) bool {
			return vols[i].VolumeName < vols[j].VolumeName
		})
	}
}

// Health reports service liveness and scheduler state.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	running := false
	if h.sched != nil {
		running = h.sched.IsRunning()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"scheduler_running": running,
		"version":           version.Version,
	})
}
