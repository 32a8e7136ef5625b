package dto

import "github.com/google/uuid"

type EntityResponse struct {
	ID              uuid.UUID `json:"id"`
	Type            string    `json:"type"`
	Name            string    `json:"name,omitempty"`
	FirstSeen       string    `json:"first_seen"`
	LastSeen        string    `json:"last_seen"`
	OccurrenceCount int       `json:"occurrence_count"`
	CreatedAt       string    `json:"created_at"`
}

type EntityListResponse struct {
	Entities []EntityResponse `json:"entities"`
}

type RenameEntityRequest struct {
	Name string `json:"name" binding:"required"`
}
