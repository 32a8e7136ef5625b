// Package processor is the pipeline core: a bounded trigger queue
// drained by a small worker pool that gates motion through zones, runs
// the analysis orchestrator, best-effort matches entities, persists the
// event, and fans out notifications.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/entity"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/notify"
	"github.com/your-org/homewatch/internal/observability"
)

// Analyzer runs the fallback state machine for one trigger.
type Analyzer interface {
	Analyze(ctx context.Context, cam *models.Camera, trigger models.MotionTrigger) models.AnalysisResult
}

// Matcher clusters event embeddings into recurring entities.
type Matcher interface {
	MatchOrCreate(ctx context.Context, eventID uuid.UUID, embedding []float32, entityType models.EntityType) (entity.Match, error)
}

// EmbeddingSource produces the vector for entity matching from the
// event snapshot.
type EmbeddingSource interface {
	Embed(ctx context.Context, image []byte) ([]float32, error)
}

// ZoneGate decides whether motion is inside any enabled zone.
type ZoneGate interface {
	Evaluate(ctx context.Context, cameraID uuid.UUID, point [2]float64) bool
}

// Store is the persistence slice the processor needs.
type Store interface {
	GetCamera(ctx context.Context, id uuid.UUID) (*models.Camera, error)
	CreateEvent(ctx context.Context, ev *models.Event) error
}

// ObjectGetter fetches the snapshot bytes for embedding extraction.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Processor owns the queue, the worker pool, and per-camera cooldowns.
type Processor struct {
	cfg      config.PipelineConfig
	queue    *triggerQueue
	gate     ZoneGate
	analyzer Analyzer
	matcher  Matcher
	embedder EmbeddingSource
	objects  ObjectGetter
	store    Store
	fanout   *notify.Fanout

	cooldownMu sync.Mutex
	cooldowns  map[uuid.UUID]time.Time

	wg      sync.WaitGroup
	started bool
}

func New(cfg config.PipelineConfig, gate ZoneGate, analyzer Analyzer, matcher Matcher,
	embedder EmbeddingSource, objects ObjectGetter, store Store, fanout *notify.Fanout) *Processor {

	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 50
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.WorkerCount > 5 {
		cfg.WorkerCount = 5
	}

	return &Processor{
		cfg:       cfg,
		queue:     newTriggerQueue(cfg.QueueCapacity),
		gate:      gate,
		analyzer:  analyzer,
		matcher:   matcher,
		embedder:  embedder,
		objects:   objects,
		store:     store,
		fanout:    fanout,
		cooldowns: make(map[uuid.UUID]time.Time),
	}
}

// Start launches the worker pool. ctx cancellation alone does not stop
// the workers; call Shutdown for a bounded drain.
func (p *Processor) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}
	slog.Info("event processor started",
		"workers", p.cfg.WorkerCount,
		"queue_capacity", p.cfg.QueueCapacity,
		"cooldown", p.cfg.Cooldown.String(),
	)
}

// Enqueue accepts a motion trigger from a camera producer. Triggers
// inside the camera's cooldown window are dropped; a full queue evicts
// its oldest pending trigger with a warning.
func (p *Processor) Enqueue(trigger models.MotionTrigger) {
	observability.MotionTriggers.WithLabelValues(trigger.CameraID.String()).Inc()

	if !p.passCooldown(trigger.CameraID, trigger.Timestamp) {
		observability.EventsDropped.WithLabelValues("cooldown").Inc()
		slog.Debug("trigger inside cooldown window", "camera_id", trigger.CameraID)
		return
	}

	dropped, ok := p.queue.Push(trigger)
	if !ok {
		observability.EventsDropped.WithLabelValues("shutdown").Inc()
		slog.Warn("trigger refused, processor shutting down", "camera_id", trigger.CameraID)
		return
	}
	if dropped != nil {
		observability.EventsDropped.WithLabelValues("queue_overflow").Inc()
		slog.Warn("queue full, dropped oldest trigger",
			"camera_id", dropped.CameraID,
			"timestamp", dropped.Timestamp,
		)
	}
	observability.QueueDepth.Set(float64(p.queue.Len()))
}

// passCooldown records the trigger time and reports whether the camera
// is clear of its quiet period. Multiple motion ticks for one camera
// race here, hence the lock.
func (p *Processor) passCooldown(cameraID uuid.UUID, at time.Time) bool {
	if p.cfg.Cooldown <= 0 {
		return true
	}
	p.cooldownMu.Lock()
	defer p.cooldownMu.Unlock()

	last, seen := p.cooldowns[cameraID]
	if seen && at.Sub(last) < p.cfg.Cooldown {
		return false
	}
	p.cooldowns[cameraID] = at
	return true
}

// Shutdown stops intake and drains in-flight work within the configured
// timeout. Triggers still queued past the deadline are dropped with a
// log trace, never silently.
func (p *Processor) Shutdown(ctx context.Context) {
	p.queue.Close()

	timeout := p.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	drainCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("event processor drained")
	case <-drainCtx.Done():
		remaining := p.queue.Discard()
		for _, t := range remaining {
			observability.EventsDropped.WithLabelValues("shutdown").Inc()
			slog.Warn("dropping queued trigger at shutdown",
				"camera_id", t.CameraID, "timestamp", t.Timestamp)
		}
		<-done
	}

	p.fanout.Wait(drainCtx)
}

func (p *Processor) workerLoop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		trigger, ok := p.queue.Pop()
		if !ok {
			return
		}
		observability.QueueDepth.Set(float64(p.queue.Len()))

		if err := p.safeProcess(ctx, trigger); err != nil {
			// One failure never halts the pool.
			slog.Error("trigger processing failed",
				"worker", id, "camera_id", trigger.CameraID, "error", err)
		}
	}
}

// safeProcess converts worker panics into errors so a poisoned trigger
// cannot take a worker down.
func (p *Processor) safeProcess(ctx context.Context, trigger models.MotionTrigger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.process(ctx, trigger)
}

func (p *Processor) process(ctx context.Context, trigger models.MotionTrigger) error {
	cam, err := p.store.GetCamera(ctx, trigger.CameraID)
	if err != nil {
		return fmt.Errorf("load camera %s: %w", trigger.CameraID, err)
	}
	if cam == nil || !cam.Enabled {
		slog.Debug("trigger for unknown or disabled camera", "camera_id", trigger.CameraID)
		return nil
	}

	// 1. Zone gate: motion outside all enabled zones is dropped silently.
	if !p.gate.Evaluate(ctx, cam.ID, trigger.MotionPoint) {
		observability.EventsDropped.WithLabelValues("outside_zone").Inc()
		slog.Debug("motion outside enabled zones", "camera_id", cam.ID)
		return nil
	}

	// 2. Analysis cascade. Never errors; worst case is a degraded result.
	result := p.analyzer.Analyze(ctx, cam, trigger)

	ev := &models.Event{
		ID:               uuid.New(),
		CameraID:         cam.ID,
		Timestamp:        trigger.Timestamp,
		Description:      result.Description,
		Confidence:       result.Confidence,
		Objects:          result.Objects,
		Mode:             result.Mode,
		FrameCountUsed:   result.FrameCountUsed,
		FallbackReason:   result.Fallbacks.Encode(),
		Provider:         result.Provider,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		EstimatedCost:    result.EstimatedCost,
		IsEstimated:      result.IsEstimated,
		SnapshotKey:      trigger.SnapshotKey,
		CreatedAt:        time.Now(),
	}

	// 3. Entity matching is best-effort; the event proceeds unlinked on
	// any failure.
	if match := p.matchEntity(ctx, ev, trigger, result); match.Attempted && match.Entity != nil {
		ev.MatchedEntityID = &match.Entity.ID
		ev.MatchScore = match.Similarity
	}

	// 4. Persist with bounded retries.
	if err := p.persist(ctx, ev); err != nil {
		observability.EventsDropped.WithLabelValues("persist_failed").Inc()
		return fmt.Errorf("persist event: %w", err)
	}
	observability.EventsCreated.WithLabelValues(cam.ID.String(), string(ev.Mode)).Inc()

	// 5. Fire-and-forget notifications.
	p.fanout.EventCreated(ev)
	return nil
}

func (p *Processor) matchEntity(ctx context.Context, ev *models.Event, trigger models.MotionTrigger, result models.AnalysisResult) entity.Match {
	if p.matcher == nil || p.embedder == nil {
		return entity.Match{}
	}

	snapshot, err := p.objects.GetObject(ctx, trigger.SnapshotKey)
	if err != nil {
		return entity.Skipped("snapshot unavailable: " + err.Error())
	}

	embedding, err := p.embedder.Embed(ctx, snapshot)
	if err != nil {
		return entity.Skipped("embedding service unavailable: " + err.Error())
	}

	match, err := p.matcher.MatchOrCreate(ctx, ev.ID, embedding, classifyEntity(result.Objects))
	if err != nil {
		return entity.Skipped("matcher error: " + err.Error())
	}
	return match
}

// classifyEntity derives the entity type from detected object labels.
func classifyEntity(objects []string) models.EntityType {
	for _, o := range objects {
		switch strings.ToLower(o) {
		case "person", "people", "face":
			return models.EntityPerson
		case "car", "truck", "vehicle", "van", "motorcycle", "bus":
			return models.EntityVehicle
		}
	}
	return models.EntityUnknown
}

// persist writes the event, retrying transient failures with exponential
// backoff. Exhausting retries surfaces the event as failed; it is not
// resubmitted to the queue.
func (p *Processor) persist(ctx context.Context, ev *models.Event) error {
	retries := p.cfg.PersistRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := p.cfg.PersistBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := backoff << uint(attempt-1)
			slog.Warn("retrying event persist",
				"event_id", ev.ID, "attempt", attempt, "delay", delay.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if lastErr = p.store.CreateEvent(ctx, ev); lastErr == nil {
			return nil
		}
	}
	ev.Failed = true
	return lastErr
}

// QueueDepth reports pending triggers, for readiness probes.
func (p *Processor) QueueDepth() int {
	return p.queue.Len()
}
