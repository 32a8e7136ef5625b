package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxZonesPerCamera bounds the number of detection zones a camera may carry.
const MaxZonesPerCamera = 10

// DetectionZone is a user-defined polygon restricting where motion is
// considered relevant. Vertices are normalized frame coordinates in [0,1].
type DetectionZone struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Vertices [][2]float64 `json:"vertices"`
	Enabled  bool         `json:"enabled"`
}

// Normalize auto-closes the polygon (first vertex == last vertex).
// Idempotent.
func (z DetectionZone) Normalize() DetectionZone {
	n := len(z.Vertices)
	if n >= 3 && z.Vertices[0] != z.Vertices[n-1] {
		closed := make([][2]float64, n+1)
		copy(closed, z.Vertices)
		closed[n] = z.Vertices[0]
		z.Vertices = closed
	}
	return z
}

// Validate checks the zone invariants: at least 3 vertices and all
// coordinates inside [0,1].
func (z DetectionZone) Validate() error {
	if len(z.Vertices) < 3 {
		return fmt.Errorf("zone %q: need at least 3 vertices, got %d", z.Name, len(z.Vertices))
	}
	for i, v := range z.Vertices {
		if v[0] < 0 || v[0] > 1 || v[1] < 0 || v[1] > 1 {
			return fmt.Errorf("zone %q: vertex %d (%.3f, %.3f) outside [0,1]", z.Name, i, v[0], v[1])
		}
	}
	return nil
}

// ValidateZones checks a camera's full zone list on write.
func ValidateZones(zones []DetectionZone) error {
	if len(zones) > MaxZonesPerCamera {
		return fmt.Errorf("at most %d zones per camera, got %d", MaxZonesPerCamera, len(zones))
	}
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CameraType tells whether a camera can serve clips for video analysis.
type CameraType string

const (
	CameraTypeProtect  CameraType = "protect" // clip-capable NVR camera
	CameraTypeSnapshot CameraType = "snapshot"
)

// SupportsClips reports whether clip retrieval is available for the type.
func (t CameraType) SupportsClips() bool {
	return t == CameraTypeProtect
}

// Camera is the configuration record for one motion source. Zones are a
// typed slice at the service boundary and a JSON column underneath.
type Camera struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Type         CameraType      `json:"type" db:"type"`
	AnalysisMode AnalysisMode    `json:"analysis_mode" db:"analysis_mode"`
	Enabled      bool            `json:"enabled" db:"enabled"`
	Zones        []DetectionZone `json:"zones" db:"zones"`
	ZoneVersion  int64           `json:"zone_version" db:"zone_version"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// EncodeZones serializes a zone list for the cameras.zones JSON column.
func EncodeZones(zones []DetectionZone) (json.RawMessage, error) {
	if zones == nil {
		zones = []DetectionZone{}
	}
	data, err := json.Marshal(zones)
	if err != nil {
		return nil, fmt.Errorf("encode zones: %w", err)
	}
	return data, nil
}

// DecodeZones parses the JSON column back into typed zones, normalizing
// each polygon.
func DecodeZones(data json.RawMessage) ([]DetectionZone, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var zones []DetectionZone
	if err := json.Unmarshal(data, &zones); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}
	for i := range zones {
		zones[i] = zones[i].Normalize()
	}
	return zones, nil
}
