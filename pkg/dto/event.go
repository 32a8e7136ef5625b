package dto

import "github.com/google/uuid"

type EventResponse struct {
	ID               uuid.UUID  `json:"id"`
	CameraID         uuid.UUID  `json:"camera_id"`
	Timestamp        string     `json:"timestamp"`
	Description      string     `json:"description"`
	Confidence       float32    `json:"confidence"`
	Objects          []string   `json:"objects"`
	AnalysisMode     string     `json:"analysis_mode"`
	FrameCountUsed   *int       `json:"frame_count_used,omitempty"`
	FallbackReason   string     `json:"fallback_reason,omitempty"`
	Provider         string     `json:"provider"`
	PromptTokens     int        `json:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens"`
	EstimatedCost    float64    `json:"estimated_cost"`
	IsEstimated      bool       `json:"is_estimated"`
	MatchedEntityID  *uuid.UUID `json:"matched_entity_id,omitempty"`
	MatchedName      string     `json:"matched_name,omitempty"`
	MatchScore       float32    `json:"match_score,omitempty"`
	SnapshotURL      string     `json:"snapshot_url,omitempty"`
	Failed           bool       `json:"failed,omitempty"`
	CreatedAt        string     `json:"created_at"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

type EventQuery struct {
	CameraID string `form:"camera_id"`
	EntityID string `form:"entity_id"`
	Mode     string `form:"mode"`
	From     string `form:"from"`
	To       string `form:"to"`
	Unknown  *bool  `form:"unknown"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// WSEvent is a WebSocket message for real-time event delivery.
type WSEvent struct {
	Type     string        `json:"type"` // event_created
	CameraID uuid.UUID     `json:"camera_id"`
	Data     EventResponse `json:"data,omitempty"`
}
