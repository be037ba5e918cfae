// Package resolver maps a logical volume name plus a relative path onto the
// concrete filesystem location backing it. Resolution failures are expected
// operational states (volume removed, daemon down) and are reported as
// ErrNotResolved so the scheduler can skip the registration for a tick.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/moby/moby/api/types/volume"
)

// ErrNotResolved means the volume or its mountpoint is unavailable.
var ErrNotResolved = errors.New("target not resolved")

// VolumeInspector is the single engine call resolution needs.
type VolumeInspector interface {
	InspectVolume(ctx context.Context, name string) (volume.Volume, error)
}

// Resolver resolves registration targets against the volume backend.
type Resolver struct {
	volumes VolumeInspector
}

// New creates a resolver over the given volume backend. A nil backend is
// allowed; every resolution then fails with ErrNotResolved.
func New(volumes VolumeInspector) *Resolver {
	return &Resolver{volumes: volumes}
}

// Resolve returns the concrete path for relativePath inside volumeName's
// mountpoint. An empty relative path resolves to the mountpoint itself.
func (r *Resolver) Resolve(ctx context.Context, volumeName, relativePath string) (string, error) {
	if r.volumes == nil {
		return "", fmt.Errorf("%w: no volume backend for %s", ErrNotResolved, volumeName)
	}

	vol, err := r.volumes.InspectVolume(ctx, volumeName)
	if err != nil {
		return "", fmt.Errorf("%w: volume %s unavailable: %v", ErrNotResolved, volumeName, err)
	}
	if vol.Mountpoint == "" {
		return "", fmt.Errorf("%w: volume %s has no mountpoint", ErrNotResolved, volumeName)
	}

	normalized := strings.TrimLeft(relativePath, "/")
	if normalized == "" {
		return vol.Mountpoint, nil
	}
	return filepath.Join(vol.Mountpoint, normalized), nil
}
