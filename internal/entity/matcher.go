// Package entity clusters event embeddings into recurring visitors via
// cosine similarity against cached reference vectors.
package entity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
)

// DefaultThreshold is the minimum cosine similarity for a match.
const DefaultThreshold = 0.75

// Store is the persistence slice the matcher needs.
// *storage.PostgresStore satisfies it.
type Store interface {
	ListEntities(ctx context.Context) ([]models.RecognizedEntity, error)
	CreateEntity(ctx context.Context, e *models.RecognizedEntity) error
	BumpEntity(ctx context.Context, id uuid.UUID, lastSeen time.Time) error
	RecordEntityEvent(ctx context.Context, link models.EntityEvent) error
}

// Match is the outcome of one MatchOrCreate call. Attempted is false
// when no embedding was available and the event stays unlinked.
type Match struct {
	Entity     *models.RecognizedEntity
	Similarity float32
	IsNew      bool
	Attempted  bool
}

// Matcher keeps an in-memory snapshot of all reference embeddings and
// matches new vectors against it. The snapshot is replaced wholesale on
// every mutation so concurrent readers never see a partial cache.
type Matcher struct {
	store     Store
	threshold float32

	mu     sync.RWMutex
	refs   []models.RecognizedEntity
	loaded bool
}

func NewMatcher(store Store, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{store: store, threshold: float32(threshold)}
}

// MatchOrCreate finds the closest known entity for the embedding. At or
// above the threshold the entity's occurrence count and last-seen move
// forward and an EntityEvent links it to the event; below the threshold
// (or with no entities yet) a new entity is created with the embedding
// as its reference and a self-match link of score 1.0.
func (m *Matcher) MatchOrCreate(ctx context.Context, eventID uuid.UUID, embedding []float32, entityType models.EntityType) (Match, error) {
	if len(embedding) == 0 {
		return Match{}, fmt.Errorf("empty embedding")
	}

	refs, err := m.snapshot(ctx)
	if err != nil {
		return Match{}, fmt.Errorf("load entity cache: %w", err)
	}

	bestIdx := -1
	var bestScore float32
	for i := range refs {
		score := cosine(embedding, refs[i].Embedding)
		if bestIdx == -1 || score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	now := time.Now()

	if bestIdx >= 0 && bestScore >= m.threshold {
		matched := refs[bestIdx]
		if err := m.store.BumpEntity(ctx, matched.ID, now); err != nil {
			return Match{}, fmt.Errorf("bump entity %s: %w", matched.ID, err)
		}
		if err := m.store.RecordEntityEvent(ctx, models.EntityEvent{
			EntityID:   matched.ID,
			EventID:    eventID,
			Similarity: bestScore,
			CreatedAt:  now,
		}); err != nil {
			return Match{}, fmt.Errorf("link entity event: %w", err)
		}

		matched.OccurrenceCount++
		matched.LastSeen = now
		m.replace(bestIdx, matched)

		observability.EntitiesMatched.WithLabelValues("matched").Inc()
		return Match{Entity: &matched, Similarity: bestScore, Attempted: true}, nil
	}

	created := models.RecognizedEntity{
		ID:              uuid.New(),
		Type:            entityType,
		Embedding:       embedding,
		FirstSeen:       now,
		LastSeen:        now,
		OccurrenceCount: 1,
	}
	if err := m.store.CreateEntity(ctx, &created); err != nil {
		return Match{}, fmt.Errorf("create entity: %w", err)
	}
	if err := m.store.RecordEntityEvent(ctx, models.EntityEvent{
		EntityID:   created.ID,
		EventID:    eventID,
		Similarity: 1.0, // self-match against its own reference
		CreatedAt:  now,
	}); err != nil {
		return Match{}, fmt.Errorf("link entity event: %w", err)
	}

	m.append(created)

	observability.EntitiesMatched.WithLabelValues("created").Inc()
	return Match{Entity: &created, Similarity: 1.0, IsNew: true, Attempted: true}, nil
}

// Skipped builds the no-match-attempted result used when the embedding
// source is unavailable; the event proceeds unlinked.
func Skipped(reason string) Match {
	slog.Warn("entity matching skipped", "reason", reason)
	observability.EntitiesMatched.WithLabelValues("skipped").Inc()
	return Match{Attempted: false}
}

// Invalidate drops the cache; the next call reloads from the store.
// Called after out-of-band entity mutations (API delete).
func (m *Matcher) Invalidate() {
	m.mu.Lock()
	m.refs = nil
	m.loaded = false
	m.mu.Unlock()
}

// snapshot returns the current reference slice, loading it on first use.
func (m *Matcher) snapshot(ctx context.Context) ([]models.RecognizedEntity, error) {
	m.mu.RLock()
	if m.loaded {
		refs := m.refs
		m.mu.RUnlock()
		return refs, nil
	}
	m.mu.RUnlock()

	entities, err := m.store.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.refs = entities
	m.loaded = true
	m.mu.Unlock()
	return entities, nil
}

// replace swaps in a new slice with index i updated.
func (m *Matcher) replace(i int, e models.RecognizedEntity) {
	m.mu.Lock()
	if i < len(m.refs) {
		next := make([]models.RecognizedEntity, len(m.refs))
		copy(next, m.refs)
		next[i] = e
		m.refs = next
	}
	m.mu.Unlock()
}

// append swaps in a new slice with e added.
func (m *Matcher) append(e models.RecognizedEntity) {
	m.mu.Lock()
	next := make([]models.RecognizedEntity, len(m.refs)+1)
	copy(next, m.refs)
	next[len(m.refs)] = e
	m.refs = next
	m.mu.Unlock()
}

// cosine computes cosine similarity between two vectors. Mismatched or
// zero-length vectors score 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
