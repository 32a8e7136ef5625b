// Package zones decides whether detected motion falls inside any of a
// camera's enabled detection zones. The filter fails open: a camera with
// no zones, or whose zone configuration cannot be loaded, allows every
// trigger through.
package zones

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
)

// Zone configs change rarely, so cached polygons stay live this long
// before the source is consulted again. Explicit Invalidate bypasses
// the wait.
const cacheTTL = 30 * time.Second

// Source supplies a camera's zone list together with a version counter
// that changes whenever the zones are rewritten.
type Source interface {
	CameraZones(ctx context.Context, cameraID uuid.UUID) ([]models.DetectionZone, int64, error)
}

type cacheEntry struct {
	version  int64
	zones    []models.DetectionZone // normalized, enabled-only copy dropped in containsAny
	loadedAt time.Time
}

// Filter evaluates motion points against camera zones, caching decoded
// polygons keyed by camera and config version.
type Filter struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[uuid.UUID]cacheEntry
}

func NewFilter(source Source) *Filter {
	return &Filter{
		source: source,
		ttl:    cacheTTL,
		now:    time.Now,
		cache:  make(map[uuid.UUID]cacheEntry),
	}
}

// Evaluate reports whether the motion point is inside any enabled zone
// for the camera. Returns true (allow) when the camera has no zones or
// the zone configuration cannot be read.
func (f *Filter) Evaluate(ctx context.Context, cameraID uuid.UUID, point [2]float64) bool {
	zones, err := f.zonesFor(ctx, cameraID)
	if err != nil {
		slog.Warn("zone config unavailable, allowing event", "camera_id", cameraID, "error", err)
		return true
	}
	if len(zones) == 0 {
		return true
	}

	anyEnabled := false
	for _, z := range zones {
		if !z.Enabled {
			continue
		}
		anyEnabled = true
		if containsPoint(z.Vertices, point[0], point[1]) {
			return true
		}
	}
	// All zones disabled behaves like no zones at all.
	return !anyEnabled
}

// EvaluateBBox evaluates the centre of a normalized bounding box
// (x1, y1, x2, y2).
func (f *Filter) EvaluateBBox(ctx context.Context, cameraID uuid.UUID, bbox [4]float64) bool {
	cx := (bbox[0] + bbox[2]) / 2
	cy := (bbox[1] + bbox[3]) / 2
	return f.Evaluate(ctx, cameraID, [2]float64{cx, cy})
}

// Invalidate drops the cached polygons for a camera. Called after zone
// writes; the next Evaluate reloads from the source.
func (f *Filter) Invalidate(cameraID uuid.UUID) {
	f.mu.Lock()
	delete(f.cache, cameraID)
	f.mu.Unlock()
}

// zonesFor serves the cached polygon list for a camera and only goes
// back to the source when the entry is missing, invalidated, or past
// its TTL. Polygons are re-normalized only when the config version
// actually moved; the refreshed entry is built aside and swapped in,
// so concurrent readers never observe a partial list.
func (f *Filter) zonesFor(ctx context.Context, cameraID uuid.UUID) ([]models.DetectionZone, error) {
	f.mu.RLock()
	entry, ok := f.cache[cameraID]
	f.mu.RUnlock()
	if ok && f.now().Sub(entry.loadedAt) < f.ttl {
		return entry.zones, nil
	}

	raw, version, err := f.source.CameraZones(ctx, cameraID)
	if err != nil {
		if ok {
			// Keep serving the last good config on a transient failure.
			slog.Warn("zone refresh failed, serving cached config", "camera_id", cameraID, "error", err)
			return entry.zones, nil
		}
		return nil, err
	}

	zones := entry.zones
	if !ok || entry.version != version {
		zones = make([]models.DetectionZone, len(raw))
		for i, z := range raw {
			zones[i] = z.Normalize()
		}
	}

	f.mu.Lock()
	f.cache[cameraID] = cacheEntry{version: version, zones: zones, loadedAt: f.now()}
	f.mu.Unlock()
	return zones, nil
}

// containsPoint runs the ray-casting (crossing number) test against the
// polygon. Vertices are expected closed (first == last); the algorithm
// also works on an open ring since the wrap edge is walked explicitly.
func containsPoint(vertices [][2]float64, x, y float64) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := vertices[i][0], vertices[i][1]
		xj, yj := vertices[j][0], vertices[j][1]

		if ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi)+xi) {
			inside = !inside
		}
		j = i
	}
	return inside
}
