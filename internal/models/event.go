package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisMode is the fidelity level of AI description generation
// actually used for an event.
type AnalysisMode string

const (
	ModeVideoNative AnalysisMode = "video_native"
	ModeMultiFrame  AnalysisMode = "multi_frame"
	ModeSingleFrame AnalysisMode = "single_frame"
)

// FallbackReason records one step of the analysis fallback chain:
// which stage was abandoned and why.
type FallbackReason struct {
	Stage AnalysisMode `json:"stage"`
	Cause string       `json:"cause"`
}

func (r FallbackReason) String() string {
	return string(r.Stage) + ":" + r.Cause
}

// FallbackChain is the ordered list of fallback steps taken before an
// analysis succeeded (or gave up).
type FallbackChain []FallbackReason

// Encode serializes the chain to the "stage:cause;stage:cause" form
// used at the storage boundary. An empty chain encodes to "".
func (c FallbackChain) Encode() string {
	if len(c) == 0 {
		return ""
	}
	parts := make([]string, len(c))
	for i, r := range c {
		parts[i] = r.String()
	}
	return strings.Join(parts, ";")
}

// DecodeFallbackChain parses the storage form back into a chain.
func DecodeFallbackChain(s string) FallbackChain {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	chain := make(FallbackChain, 0, len(parts))
	for _, p := range parts {
		stage, cause, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		chain = append(chain, FallbackReason{Stage: AnalysisMode(stage), Cause: cause})
	}
	return chain
}

// AnalysisResult is the immutable outcome of one orchestrator run.
type AnalysisResult struct {
	Description      string        `json:"description"`
	Confidence       float32       `json:"confidence"`
	Objects          []string      `json:"objects"`
	Mode             AnalysisMode  `json:"mode"`
	FrameCountUsed   *int          `json:"frame_count_used,omitempty"` // non-nil iff multi_frame
	Fallbacks        FallbackChain `json:"fallbacks,omitempty"`
	Provider         string        `json:"provider"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	EstimatedCost    float64       `json:"estimated_cost"`
	IsEstimated      bool          `json:"is_estimated"`
}

// MotionTrigger is the message published by the ingestor for worker
// processing. It is the in-flight queue item; the worker fills in the
// zone outcome before persisting the event.
type MotionTrigger struct {
	CameraID    uuid.UUID  `json:"camera_id"`
	TriggerID   uuid.UUID  `json:"trigger_id"`
	Timestamp   time.Time  `json:"timestamp"`
	SnapshotKey string     `json:"snapshot_key"`       // MinIO key of the trigger snapshot
	ClipKey     string     `json:"clip_key,omitempty"` // MinIO prefix of clip frames, empty if none
	ObjectHints []string   `json:"object_hints,omitempty"`
	MotionPoint [2]float64 `json:"motion_point"` // normalized centre of detected motion
}

// HasClipSource reports whether the camera supplied a clip for this trigger.
func (t MotionTrigger) HasClipSource() bool {
	return t.ClipKey != ""
}

// Event is the persisted record created once per processed trigger.
// Immutable after creation.
type Event struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	CameraID         uuid.UUID    `json:"camera_id" db:"camera_id"`
	Timestamp        time.Time    `json:"timestamp" db:"timestamp"`
	Description      string       `json:"description" db:"description"`
	Confidence       float32      `json:"confidence" db:"confidence"`
	Objects          []string     `json:"objects" db:"objects"`
	Mode             AnalysisMode `json:"analysis_mode" db:"analysis_mode"`
	FrameCountUsed   *int         `json:"frame_count_used,omitempty" db:"frame_count_used"`
	FallbackReason   string       `json:"fallback_reason,omitempty" db:"fallback_reason"`
	Provider         string       `json:"provider" db:"provider"`
	PromptTokens     int          `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int          `json:"completion_tokens" db:"completion_tokens"`
	EstimatedCost    float64      `json:"estimated_cost" db:"estimated_cost"`
	IsEstimated      bool         `json:"is_estimated" db:"is_estimated"`
	MatchedEntityID  *uuid.UUID   `json:"matched_entity_id,omitempty" db:"matched_entity_id"`
	MatchScore       float32      `json:"match_score,omitempty" db:"match_score"`
	SnapshotKey      string       `json:"snapshot_key" db:"snapshot_key"`
	Failed           bool         `json:"failed" db:"failed"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}
