package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Cameras ---

func (s *PostgresStore) CreateCamera(ctx context.Context, cam *models.Camera) error {
	cam.ID = uuid.New()
	cam.ZoneVersion = 1
	zones, err := models.EncodeZones(cam.Zones)
	if err != nil {
		return err
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO cameras (id, name, type, analysis_mode, enabled, zones, zone_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		cam.ID, cam.Name, cam.Type, cam.AnalysisMode, cam.Enabled, zones, cam.ZoneVersion,
	).Scan(&cam.CreatedAt, &cam.UpdatedAt)
}

func (s *PostgresStore) GetCamera(ctx context.Context, id uuid.UUID) (*models.Camera, error) {
	cam := &models.Camera{}
	var zones []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, type, analysis_mode, enabled, zones, zone_version, created_at, updated_at
		 FROM cameras WHERE id = $1`, id,
	).Scan(&cam.ID, &cam.Name, &cam.Type, &cam.AnalysisMode, &cam.Enabled,
		&zones, &cam.ZoneVersion, &cam.CreatedAt, &cam.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get camera: %w", err)
	}
	if cam.Zones, err = models.DecodeZones(zones); err != nil {
		return nil, err
	}
	return cam, nil
}

func (s *PostgresStore) ListCameras(ctx context.Context) ([]models.Camera, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, analysis_mode, enabled, zones, zone_version, created_at, updated_at
		 FROM cameras ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []models.Camera
	for rows.Next() {
		var cam models.Camera
		var zones []byte
		if err := rows.Scan(&cam.ID, &cam.Name, &cam.Type, &cam.AnalysisMode, &cam.Enabled,
			&zones, &cam.ZoneVersion, &cam.CreatedAt, &cam.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan camera: %w", err)
		}
		if cam.Zones, err = models.DecodeZones(zones); err != nil {
			return nil, err
		}
		cameras = append(cameras, cam)
	}
	return cameras, nil
}

func (s *PostgresStore) UpdateCamera(ctx context.Context, cam *models.Camera) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cameras SET name = $1, type = $2, analysis_mode = $3, enabled = $4, updated_at = now()
		 WHERE id = $5`,
		cam.Name, cam.Type, cam.AnalysisMode, cam.Enabled, cam.ID)
	if err != nil {
		return fmt.Errorf("update camera: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("camera not found")
	}
	return nil
}

// UpdateCameraZones replaces the zone list atomically and bumps the
// zone version so filter caches refresh.
func (s *PostgresStore) UpdateCameraZones(ctx context.Context, id uuid.UUID, zones []models.DetectionZone) (int64, error) {
	if err := models.ValidateZones(zones); err != nil {
		return 0, err
	}
	for i := range zones {
		zones[i] = zones[i].Normalize()
	}
	encoded, err := models.EncodeZones(zones)
	if err != nil {
		return 0, err
	}

	var version int64
	err = s.pool.QueryRow(ctx,
		`UPDATE cameras SET zones = $1, zone_version = zone_version + 1, updated_at = now()
		 WHERE id = $2 RETURNING zone_version`,
		encoded, id,
	).Scan(&version)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("camera not found")
		}
		return 0, fmt.Errorf("update camera zones: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) DeleteCamera(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cameras WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete camera: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("camera not found")
	}
	return nil
}

// CameraZones loads a camera's zones and version for the zone filter.
func (s *PostgresStore) CameraZones(ctx context.Context, cameraID uuid.UUID) ([]models.DetectionZone, int64, error) {
	var zones []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT zones, zone_version FROM cameras WHERE id = $1`, cameraID,
	).Scan(&zones, &version)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("load camera zones: %w", err)
	}
	decoded, err := models.DecodeZones(zones)
	if err != nil {
		return nil, 0, err
	}
	return decoded, version, nil
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, camera_id, timestamp, description, confidence, objects,
		   analysis_mode, frame_count_used, fallback_reason, provider,
		   prompt_tokens, completion_tokens, estimated_cost, is_estimated,
		   matched_entity_id, match_score, snapshot_key, failed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		ev.ID, ev.CameraID, ev.Timestamp, ev.Description, ev.Confidence, ev.Objects,
		ev.Mode, ev.FrameCountUsed, ev.FallbackReason, ev.Provider,
		ev.PromptTokens, ev.CompletionTokens, ev.EstimatedCost, ev.IsEstimated,
		ev.MatchedEntityID, ev.MatchScore, ev.SnapshotKey, ev.Failed, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// EventFilter narrows QueryEvents. Nil fields are ignored.
type EventFilter struct {
	CameraID *uuid.UUID
	From     *time.Time
	To       *time.Time
	EntityID *uuid.UUID
	Mode     *models.AnalysisMode
	Unknown  bool
}

func (s *PostgresStore) QueryEvents(ctx context.Context, f EventFilter, limit, offset int) ([]models.Event, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if f.CameraID != nil {
		where += fmt.Sprintf(" AND camera_id = $%d", argIdx)
		args = append(args, *f.CameraID)
		argIdx++
	}
	if f.From != nil {
		where += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		where += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *f.To)
		argIdx++
	}
	if f.EntityID != nil {
		where += fmt.Sprintf(" AND matched_entity_id = $%d", argIdx)
		args = append(args, *f.EntityID)
		argIdx++
	}
	if f.Mode != nil {
		where += fmt.Sprintf(" AND analysis_mode = $%d", argIdx)
		args = append(args, *f.Mode)
		argIdx++
	}
	if f.Unknown {
		where += " AND matched_entity_id IS NULL"
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, camera_id, timestamp, description, confidence, objects,
		   analysis_mode, frame_count_used, fallback_reason, provider,
		   prompt_tokens, completion_tokens, estimated_cost, is_estimated,
		   matched_entity_id, match_score, snapshot_key, failed, created_at
		 FROM events %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.CameraID, &ev.Timestamp, &ev.Description, &ev.Confidence, &ev.Objects,
			&ev.Mode, &ev.FrameCountUsed, &ev.FallbackReason, &ev.Provider,
			&ev.PromptTokens, &ev.CompletionTokens, &ev.EstimatedCost, &ev.IsEstimated,
			&ev.MatchedEntityID, &ev.MatchScore, &ev.SnapshotKey, &ev.Failed, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var ev models.Event
	err := s.pool.QueryRow(ctx,
		`SELECT id, camera_id, timestamp, description, confidence, objects,
		   analysis_mode, frame_count_used, fallback_reason, provider,
		   prompt_tokens, completion_tokens, estimated_cost, is_estimated,
		   matched_entity_id, match_score, snapshot_key, failed, created_at
		 FROM events WHERE id = $1`, id,
	).Scan(&ev.ID, &ev.CameraID, &ev.Timestamp, &ev.Description, &ev.Confidence, &ev.Objects,
		&ev.Mode, &ev.FrameCountUsed, &ev.FallbackReason, &ev.Provider,
		&ev.PromptTokens, &ev.CompletionTokens, &ev.EstimatedCost, &ev.IsEstimated,
		&ev.MatchedEntityID, &ev.MatchScore, &ev.SnapshotKey, &ev.Failed, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

// --- Entities ---

func (s *PostgresStore) CreateEntity(ctx context.Context, e *models.RecognizedEntity) error {
	vec := pgvector.NewVector(e.Embedding)
	return s.pool.QueryRow(ctx,
		`INSERT INTO entities (id, type, name, embedding, first_seen, last_seen, occurrence_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		e.ID, e.Type, e.Name, vec, e.FirstSeen, e.LastSeen, e.OccurrenceCount,
	).Scan(&e.CreatedAt)
}

func (s *PostgresStore) ListEntities(ctx context.Context) ([]models.RecognizedEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, type, name, embedding, first_seen, last_seen, occurrence_count, created_at
		 FROM entities ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []models.RecognizedEntity
	for rows.Next() {
		var e models.RecognizedEntity
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &vec,
			&e.FirstSeen, &e.LastSeen, &e.OccurrenceCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Embedding = vec.Slice()
		entities = append(entities, e)
	}
	return entities, nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id uuid.UUID) (*models.RecognizedEntity, error) {
	var e models.RecognizedEntity
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, type, name, embedding, first_seen, last_seen, occurrence_count, created_at
		 FROM entities WHERE id = $1`, id,
	).Scan(&e.ID, &e.Type, &e.Name, &vec,
		&e.FirstSeen, &e.LastSeen, &e.OccurrenceCount, &e.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}
	e.Embedding = vec.Slice()
	return &e, nil
}

// BumpEntity records a repeat sighting: last_seen advances and the
// occurrence count increments.
func (s *PostgresStore) BumpEntity(ctx context.Context, id uuid.UUID, lastSeen time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE entities SET last_seen = $1, occurrence_count = occurrence_count + 1 WHERE id = $2`,
		lastSeen, id)
	if err != nil {
		return fmt.Errorf("bump entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) RenameEntity(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE entities SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("rename entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entity not found")
	}
	return nil
}

func (s *PostgresStore) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entity not found")
	}
	return nil
}

func (s *PostgresStore) RecordEntityEvent(ctx context.Context, link models.EntityEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entity_events (entity_id, event_id, similarity) VALUES ($1, $2, $3)`,
		link.EntityID, link.EventID, link.Similarity)
	if err != nil {
		return fmt.Errorf("record entity event: %w", err)
	}
	return nil
}
