package zones

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
)

// stubSource serves a fixed zone list, counting loads so cache behaviour
// is observable.
type stubSource struct {
	zones   []models.DetectionZone
	version int64
	err     error
	loads   int
}

func (s *stubSource) CameraZones(_ context.Context, _ uuid.UUID) ([]models.DetectionZone, int64, error) {
	s.loads++
	return s.zones, s.version, s.err
}

func square(x1, y1, x2, y2 float64) [][2]float64 {
	return [][2]float64{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
}

// TestCentroidInside verifies a point at the polygon centroid evaluates
// as inside and a point far outside the bounding box as outside.
func TestCentroidInside(t *testing.T) {
	polys := [][][2]float64{
		square(0.1, 0.1, 0.6, 0.6),
		{{0, 0}, {1, 0}, {0.5, 1}},           // triangle
		{{0.2, 0.2}, {0.8, 0.2}, {0.8, 0.8}}, // open right triangle
	}

	for i, verts := range polys {
		var cx, cy float64
		for _, v := range verts {
			cx += v[0]
			cy += v[1]
		}
		cx /= float64(len(verts))
		cy /= float64(len(verts))

		if !containsPoint(verts, cx, cy) {
			t.Errorf("poly %d: centroid (%.2f, %.2f) should be inside", i, cx, cy)
		}
		if containsPoint(verts, 5, 5) {
			t.Errorf("poly %d: (5, 5) should be outside", i)
		}
	}
}

// TestClosedRingEquivalent verifies the containment test gives the same
// answer for open and auto-closed polygons.
func TestClosedRingEquivalent(t *testing.T) {
	open := models.DetectionZone{Name: "z", Vertices: [][2]float64{{0, 0}, {1, 0}, {1, 1}}}
	closed := open.Normalize()

	if len(closed.Vertices) != 4 {
		t.Fatalf("expected 4 vertices after close, got %d", len(closed.Vertices))
	}
	if closed.Vertices[0] != closed.Vertices[3] {
		t.Fatalf("polygon not closed: %v", closed.Vertices)
	}

	points := [][2]float64{{0.7, 0.3}, {0.2, 0.8}, {0.5, 0.4}}
	for _, p := range points {
		a := containsPoint(open.Vertices, p[0], p[1])
		b := containsPoint(closed.Vertices, p[0], p[1])
		if a != b {
			t.Errorf("point %v: open=%v closed=%v", p, a, b)
		}
	}
}

// TestFailOpenNoZones verifies cameras without zones always allow events.
func TestFailOpenNoZones(t *testing.T) {
	f := NewFilter(&stubSource{zones: nil, version: 1})
	if !f.Evaluate(context.Background(), uuid.New(), [2]float64{0.9, 0.9}) {
		t.Error("camera without zones must allow all motion")
	}
}

// TestFailOpenSourceError verifies a broken zone source allows events.
func TestFailOpenSourceError(t *testing.T) {
	f := NewFilter(&stubSource{err: errors.New("bad json")})
	if !f.Evaluate(context.Background(), uuid.New(), [2]float64{0.5, 0.5}) {
		t.Error("zone source failure must fail open")
	}
}

// TestDisabledZonesSkipped verifies disabled zones are never evaluated
// and, when every zone is disabled, the filter behaves as if no zones
// are configured.
func TestDisabledZonesSkipped(t *testing.T) {
	src := &stubSource{
		zones: []models.DetectionZone{
			{ID: "a", Vertices: square(0, 0, 0.4, 0.4), Enabled: false},
			{ID: "b", Vertices: square(0.6, 0.6, 1, 1), Enabled: true},
		},
		version: 1,
	}
	f := NewFilter(src)
	ctx := context.Background()
	cam := uuid.New()

	// Point inside the disabled zone only: not allowed.
	if f.Evaluate(ctx, cam, [2]float64{0.2, 0.2}) {
		t.Error("point covered only by a disabled zone should be rejected")
	}
	// Point inside the enabled zone: allowed.
	if !f.Evaluate(ctx, cam, [2]float64{0.8, 0.8}) {
		t.Error("point inside the enabled zone should be allowed")
	}

	// All zones disabled: fail open.
	src.zones[1].Enabled = false
	src.version++
	f.Invalidate(cam)
	if !f.Evaluate(ctx, cam, [2]float64{0.2, 0.2}) {
		t.Error("camera with zero enabled zones must allow all motion")
	}
}

// TestLeftHalfZoneScenario covers the left-half-of-frame gating scenario:
// one enabled zone over x in [0, 0.5].
func TestLeftHalfZoneScenario(t *testing.T) {
	src := &stubSource{
		zones: []models.DetectionZone{
			{ID: "left", Name: "left half", Vertices: [][2]float64{{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1}}, Enabled: true},
		},
		version: 1,
	}
	f := NewFilter(src)
	ctx := context.Background()
	cam := uuid.New()

	if !f.Evaluate(ctx, cam, [2]float64{0.2, 0.5}) {
		t.Error("motion at (0.2, 0.5) should pass the left-half zone")
	}
	if f.Evaluate(ctx, cam, [2]float64{0.8, 0.5}) {
		t.Error("motion at (0.8, 0.5) should be rejected by the left-half zone")
	}
}

// TestBBoxCentre verifies bounding boxes are gated on their centre.
func TestBBoxCentre(t *testing.T) {
	src := &stubSource{
		zones: []models.DetectionZone{
			{ID: "left", Vertices: [][2]float64{{0, 0}, {0.5, 0}, {0.5, 1}, {0, 1}}, Enabled: true},
		},
		version: 1,
	}
	f := NewFilter(src)
	ctx := context.Background()
	cam := uuid.New()

	if !f.EvaluateBBox(ctx, cam, [4]float64{0.1, 0.4, 0.3, 0.6}) {
		t.Error("bbox centred at (0.2, 0.5) should be inside")
	}
	if f.EvaluateBBox(ctx, cam, [4]float64{0.7, 0.4, 0.9, 0.6}) {
		t.Error("bbox centred at (0.8, 0.5) should be outside")
	}
}

// TestCacheAvoidsSourceLoads verifies repeated evaluations at a stable
// config are served from the decoded-polygon cache without touching the
// source, and that Invalidate forces exactly one reload.
func TestCacheAvoidsSourceLoads(t *testing.T) {
	src := &stubSource{
		zones: []models.DetectionZone{
			{ID: "z", Vertices: square(0, 0, 0.5, 0.5), Enabled: true},
		},
		version: 1,
	}
	f := NewFilter(src)
	ctx := context.Background()
	cam := uuid.New()

	for i := 0; i < 100; i++ {
		if !f.Evaluate(ctx, cam, [2]float64{0.25, 0.25}) {
			t.Fatal("expected inside")
		}
	}
	if src.loads != 1 {
		t.Fatalf("expected a single source load for 100 evaluations, got %d", src.loads)
	}

	// Rewrite zones under a new version and invalidate, as the zone
	// write path does: next evaluation reloads once, then caches again.
	src.zones = []models.DetectionZone{
		{ID: "z", Vertices: square(0.5, 0.5, 1, 1), Enabled: true},
	}
	src.version = 2
	f.Invalidate(cam)

	if f.Evaluate(ctx, cam, [2]float64{0.25, 0.25}) {
		t.Error("point should be outside after zone rewrite")
	}
	if !f.Evaluate(ctx, cam, [2]float64{0.75, 0.75}) {
		t.Error("point should be inside the rewritten zone")
	}
	if src.loads != 2 {
		t.Fatalf("expected one reload after invalidate, got %d loads", src.loads)
	}
}

// TestCacheExpiryPicksUpNewConfig verifies a zone rewrite in another
// process (no local Invalidate) is picked up once the cache entry ages
// past its TTL.
func TestCacheExpiryPicksUpNewConfig(t *testing.T) {
	src := &stubSource{
		zones: []models.DetectionZone{
			{ID: "z", Vertices: square(0, 0, 0.5, 0.5), Enabled: true},
		},
		version: 1,
	}
	f := NewFilter(src)
	now := time.Now()
	f.now = func() time.Time { return now }
	ctx := context.Background()
	cam := uuid.New()

	if !f.Evaluate(ctx, cam, [2]float64{0.25, 0.25}) {
		t.Fatal("expected inside")
	}

	// Entry still fresh: the rewrite is not visible yet.
	src.zones = []models.DetectionZone{
		{ID: "z", Vertices: square(0.5, 0.5, 1, 1), Enabled: true},
	}
	src.version = 2
	if !f.Evaluate(ctx, cam, [2]float64{0.25, 0.25}) {
		t.Error("fresh cache entry should still serve the old config")
	}

	now = now.Add(f.ttl + time.Second)
	if f.Evaluate(ctx, cam, [2]float64{0.25, 0.25}) {
		t.Error("expired entry should reload the rewritten config")
	}
	if !f.Evaluate(ctx, cam, [2]float64{0.75, 0.75}) {
		t.Error("point should be inside the rewritten zone")
	}
	if src.loads != 2 {
		t.Fatalf("expected 2 source loads (initial and expiry), got %d", src.loads)
	}
}

// TestCacheServesStaleOnRefreshError verifies an expired entry keeps
// gating with the last good config when the source starts failing.
func TestCacheServesStaleOnRefreshError(t *testing.T) {
	src := &stubSource{
		zones: []models.DetectionZone{
			{ID: "z", Vertices: square(0, 0, 0.5, 0.5), Enabled: true},
		},
		version: 1,
	}
	f := NewFilter(src)
	now := time.Now()
	f.now = func() time.Time { return now }
	ctx := context.Background()
	cam := uuid.New()

	if !f.Evaluate(ctx, cam, [2]float64{0.25, 0.25}) {
		t.Fatal("expected inside")
	}

	src.err = errors.New("connection refused")
	now = now.Add(f.ttl + time.Second)

	if !f.Evaluate(ctx, cam, [2]float64{0.25, 0.25}) {
		t.Error("stale config should still allow the in-zone point")
	}
	if f.Evaluate(ctx, cam, [2]float64{0.9, 0.9}) {
		t.Error("stale config should still reject the out-of-zone point")
	}
}

// TestZoneValidation exercises the write-path invariants: vertex count,
// coordinate range, zone count cap.
func TestZoneValidation(t *testing.T) {
	bad := models.DetectionZone{Name: "two", Vertices: [][2]float64{{0, 0}, {1, 1}}}
	if err := bad.Validate(); err == nil {
		t.Error("2-vertex zone must fail validation")
	}

	out := models.DetectionZone{Name: "range", Vertices: [][2]float64{{0, 0}, {1.5, 0}, {1, 1}}}
	if err := out.Validate(); err == nil {
		t.Error("out-of-range coordinate must fail validation")
	}

	many := make([]models.DetectionZone, models.MaxZonesPerCamera+1)
	for i := range many {
		many[i] = models.DetectionZone{Name: "z", Vertices: square(0, 0, 1, 1)}
	}
	if err := models.ValidateZones(many); err == nil {
		t.Errorf("more than %d zones must fail validation", models.MaxZonesPerCamera)
	}

	ok := []models.DetectionZone{{Name: "fine", Vertices: square(0.1, 0.1, 0.9, 0.9)}}
	if err := models.ValidateZones(ok); err != nil {
		t.Errorf("valid zone list rejected: %v", err)
	}
}

// TestZoneRoundTrip verifies a zone survives the JSON persistence
// boundary and comes back auto-closed.
func TestZoneRoundTrip(t *testing.T) {
	in := []models.DetectionZone{
		{ID: "t", Name: "triangle", Vertices: [][2]float64{{0, 0}, {1, 0}, {1, 1}}, Enabled: true},
	}
	raw, err := models.EncodeZones(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := models.DecodeZones(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(out))
	}
	want := [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	got := out[0].Vertices
	if len(got) != len(want) {
		t.Fatalf("expected %d vertices, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vertex %d: want %v, got %v", i, want[i], got[i])
		}
	}
}
