package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a recurring visitor.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntityVehicle EntityType = "vehicle"
	EntityUnknown EntityType = "unknown"
)

// RecognizedEntity is a recurring visitor identified by
// embedding-similarity clustering across events. The reference embedding
// is the vector from the first sighting; it is never replaced
// automatically.
type RecognizedEntity struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Type            EntityType `json:"type" db:"type"`
	Name            string     `json:"name,omitempty" db:"name"`
	Embedding       []float32  `json:"-" db:"embedding"`
	FirstSeen       time.Time  `json:"first_seen" db:"first_seen"`
	LastSeen        time.Time  `json:"last_seen" db:"last_seen"`
	OccurrenceCount int        `json:"occurrence_count" db:"occurrence_count"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// EntityEvent links an entity to the event that matched (or created) it,
// recording the similarity score at match time. Rows cascade on entity
// deletion.
type EntityEvent struct {
	EntityID   uuid.UUID `json:"entity_id" db:"entity_id"`
	EventID    uuid.UUID `json:"event_id" db:"event_id"`
	Similarity float32   `json:"similarity" db:"similarity"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
