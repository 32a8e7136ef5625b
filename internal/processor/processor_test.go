package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/entity"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/notify"
)

// --- test doubles ---

type stubStore struct {
	mu         sync.Mutex
	camera     *models.Camera
	events     []*models.Event
	failsLeft  int
	alwaysFail bool
}

func (s *stubStore) GetCamera(_ context.Context, _ uuid.UUID) (*models.Camera, error) {
	return s.camera, nil
}

func (s *stubStore) CreateEvent(_ context.Context, ev *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alwaysFail {
		return errors.New("database down")
	}
	if s.failsLeft > 0 {
		s.failsLeft--
		return errors.New("transient write failure")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *stubStore) persisted() []*models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Event(nil), s.events...)
}

type stubGate struct{ allow bool }

func (g stubGate) Evaluate(_ context.Context, _ uuid.UUID, _ [2]float64) bool { return g.allow }

type stubAnalyzer struct {
	mu     sync.Mutex
	calls  int
	panics map[uuid.UUID]bool
}

func (a *stubAnalyzer) Analyze(_ context.Context, _ *models.Camera, trigger models.MotionTrigger) models.AnalysisResult {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.panics[trigger.TriggerID] {
		panic("analyzer blew up")
	}
	return models.AnalysisResult{
		Description: "someone at the door",
		Confidence:  0.9,
		Objects:     []string{"person"},
		Mode:        models.ModeSingleFrame,
		Provider:    "stub",
	}
}

type stubMatcher struct{ entityID uuid.UUID }

func (m *stubMatcher) MatchOrCreate(_ context.Context, _ uuid.UUID, _ []float32, _ models.EntityType) (entity.Match, error) {
	return entity.Match{
		Entity:     &models.RecognizedEntity{ID: m.entityID, Type: models.EntityPerson},
		Similarity: 0.91,
		Attempted:  true,
	}, nil
}

type stubEmbedder struct{ err error }

func (e stubEmbedder) Embed(_ context.Context, _ []byte) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

type stubObjects struct{}

func (stubObjects) GetObject(_ context.Context, _ string) ([]byte, error) {
	return []byte("jpeg"), nil
}

// chanNotifier signals each delivered event.
type chanNotifier struct{ ch chan *models.Event }

func (n chanNotifier) Name() string { return "test" }

func (n chanNotifier) NotifyEvent(_ context.Context, ev *models.Event) error {
	n.ch <- ev
	return nil
}

func testCamera() *models.Camera {
	return &models.Camera{
		ID:           uuid.New(),
		Name:         "porch",
		Type:         models.CameraTypeSnapshot,
		AnalysisMode: models.ModeSingleFrame,
		Enabled:      true,
	}
}

func trigger(cameraID uuid.UUID, at time.Time) models.MotionTrigger {
	return models.MotionTrigger{
		CameraID:    cameraID,
		TriggerID:   uuid.New(),
		Timestamp:   at,
		SnapshotKey: "snapshots/test.jpg",
		MotionPoint: [2]float64{0.5, 0.5},
	}
}

func testProcessor(store *stubStore, gate ZoneGate, analyzer Analyzer, matcher Matcher, embedder EmbeddingSource, notifiers ...notify.Notifier) *Processor {
	cfg := config.PipelineConfig{
		QueueCapacity:   50,
		WorkerCount:     2,
		Cooldown:        0, // individual tests opt in
		ShutdownTimeout: 2 * time.Second,
		PersistRetries:  3,
		PersistBackoff:  time.Millisecond,
	}
	return New(cfg, gate, analyzer, matcher, embedder, stubObjects{}, store, notify.NewFanout(time.Second, notifiers...))
}

// --- queue ---

// TestQueueDropOldestAtCapacity verifies the 51st trigger on a full
// 50-slot queue evicts the oldest pending item and is itself accepted.
func TestQueueDropOldestAtCapacity(t *testing.T) {
	q := newTriggerQueue(50)
	cam := uuid.New()

	var first models.MotionTrigger
	for i := 0; i < 50; i++ {
		tr := trigger(cam, time.Now())
		if i == 0 {
			first = tr
		}
		if dropped, ok := q.Push(tr); !ok || dropped != nil {
			t.Fatalf("push %d: unexpected drop", i)
		}
	}

	last := trigger(cam, time.Now())
	dropped, ok := q.Push(last)
	if !ok {
		t.Fatal("51st push must be accepted")
	}
	if dropped == nil || dropped.TriggerID != first.TriggerID {
		t.Fatal("oldest pending trigger must be the one evicted")
	}
	if q.Len() != 50 {
		t.Fatalf("queue length = %d, want 50", q.Len())
	}

	// Drain and confirm the newest item survived.
	var got []models.MotionTrigger
	q.Close()
	for {
		tr, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, tr)
	}
	if got[len(got)-1].TriggerID != last.TriggerID {
		t.Error("51st trigger must be at the tail of the queue")
	}
}

// TestQueueFIFO verifies pop order matches push order.
func TestQueueFIFO(t *testing.T) {
	q := newTriggerQueue(10)
	cam := uuid.New()
	var pushed []uuid.UUID
	for i := 0; i < 5; i++ {
		tr := trigger(cam, time.Now())
		pushed = append(pushed, tr.TriggerID)
		q.Push(tr)
	}
	q.Close()
	for i := 0; ; i++ {
		tr, ok := q.Pop()
		if !ok {
			break
		}
		if tr.TriggerID != pushed[i] {
			t.Fatalf("pop %d out of order", i)
		}
	}
}

// --- processor ---

// TestCooldownSuppressesDuplicates verifies a second trigger for the
// same camera inside the quiet period is dropped, while another camera
// is unaffected.
func TestCooldownSuppressesDuplicates(t *testing.T) {
	store := &stubStore{camera: testCamera()}
	p := testProcessor(store, stubGate{allow: true}, &stubAnalyzer{}, nil, nil)
	p.cfg.Cooldown = 10 * time.Second

	camA, camB := uuid.New(), uuid.New()
	base := time.Now()

	p.Enqueue(trigger(camA, base))
	p.Enqueue(trigger(camA, base.Add(2*time.Second)))  // inside cooldown
	p.Enqueue(trigger(camA, base.Add(15*time.Second))) // past cooldown
	p.Enqueue(trigger(camB, base.Add(time.Second)))    // different camera

	if got := p.QueueDepth(); got != 3 {
		t.Errorf("queue depth = %d, want 3", got)
	}
}

// TestZoneGateDropsSilently verifies motion outside all zones creates no
// event and sends no notification.
func TestZoneGateDropsSilently(t *testing.T) {
	store := &stubStore{camera: testCamera()}
	notifCh := make(chan *models.Event, 4)
	p := testProcessor(store, stubGate{allow: false}, &stubAnalyzer{}, nil, nil, chanNotifier{ch: notifCh})

	ctx := context.Background()
	p.Start(ctx)
	p.Enqueue(trigger(store.camera.ID, time.Now()))
	p.Shutdown(ctx)

	if evs := store.persisted(); len(evs) != 0 {
		t.Errorf("expected no events, got %d", len(evs))
	}
	select {
	case <-notifCh:
		t.Error("no notification should fire for a gated trigger")
	default:
	}
}

// TestHappyPathPersistsAndNotifies verifies the full worker sequence:
// analysis, entity link, persistence, notification.
func TestHappyPathPersistsAndNotifies(t *testing.T) {
	store := &stubStore{camera: testCamera()}
	entityID := uuid.New()
	notifCh := make(chan *models.Event, 4)
	p := testProcessor(store, stubGate{allow: true}, &stubAnalyzer{},
		&stubMatcher{entityID: entityID}, stubEmbedder{}, chanNotifier{ch: notifCh})

	ctx := context.Background()
	p.Start(ctx)
	p.Enqueue(trigger(store.camera.ID, time.Now()))
	p.Shutdown(ctx)

	evs := store.persisted()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.Mode != models.ModeSingleFrame {
		t.Errorf("mode = %s, want single_frame", ev.Mode)
	}
	if ev.MatchedEntityID == nil || *ev.MatchedEntityID != entityID {
		t.Error("event must carry the matched entity reference")
	}
	if ev.MatchScore != 0.91 {
		t.Errorf("match score = %f, want 0.91", ev.MatchScore)
	}

	select {
	case got := <-notifCh:
		if got.ID != ev.ID {
			t.Error("notification carried the wrong event")
		}
	case <-time.After(time.Second):
		t.Error("notification never fired")
	}
}

// TestEmbedderFailureLeavesEventUnlinked verifies matching errors are
// swallowed: the event persists without an entity reference.
func TestEmbedderFailureLeavesEventUnlinked(t *testing.T) {
	store := &stubStore{camera: testCamera()}
	p := testProcessor(store, stubGate{allow: true}, &stubAnalyzer{},
		&stubMatcher{entityID: uuid.New()}, stubEmbedder{err: errors.New("embedder offline")})

	ctx := context.Background()
	p.Start(ctx)
	p.Enqueue(trigger(store.camera.ID, time.Now()))
	p.Shutdown(ctx)

	evs := store.persisted()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].MatchedEntityID != nil {
		t.Error("event must stay unlinked when the embedding source is down")
	}
}

// TestWorkerPanicDoesNotHaltPool verifies one poisoned trigger does not
// stop subsequent triggers from being processed.
func TestWorkerPanicDoesNotHaltPool(t *testing.T) {
	store := &stubStore{camera: testCamera()}
	bad := trigger(store.camera.ID, time.Now())
	analyzer := &stubAnalyzer{panics: map[uuid.UUID]bool{bad.TriggerID: true}}
	p := testProcessor(store, stubGate{allow: true}, analyzer, nil, nil)

	ctx := context.Background()
	p.Start(ctx)
	p.Enqueue(bad)
	p.Enqueue(trigger(store.camera.ID, time.Now()))
	p.Shutdown(ctx)

	evs := store.persisted()
	if len(evs) != 1 {
		t.Fatalf("expected the healthy trigger to persist, got %d events", len(evs))
	}
}

// TestPersistRetriesTransientFailure verifies bounded retries recover a
// flaky store.
func TestPersistRetriesTransientFailure(t *testing.T) {
	store := &stubStore{camera: testCamera(), failsLeft: 2}
	p := testProcessor(store, stubGate{allow: true}, &stubAnalyzer{}, nil, nil)

	ctx := context.Background()
	p.Start(ctx)
	p.Enqueue(trigger(store.camera.ID, time.Now()))
	p.Shutdown(ctx)

	if evs := store.persisted(); len(evs) != 1 {
		t.Fatalf("expected event after retries, got %d", len(evs))
	}
}

// TestPersistExhaustionDoesNotResubmit verifies a permanently failing
// store surfaces the event as failed without killing workers or looping.
func TestPersistExhaustionDoesNotResubmit(t *testing.T) {
	store := &stubStore{camera: testCamera(), alwaysFail: true}
	analyzer := &stubAnalyzer{}
	p := testProcessor(store, stubGate{allow: true}, analyzer, nil, nil)

	ctx := context.Background()
	p.Start(ctx)
	p.Enqueue(trigger(store.camera.ID, time.Now()))
	p.Enqueue(trigger(store.camera.ID, time.Now()))
	p.Shutdown(ctx)

	if evs := store.persisted(); len(evs) != 0 {
		t.Fatalf("no events should persist, got %d", len(evs))
	}
	analyzer.mu.Lock()
	calls := analyzer.calls
	analyzer.mu.Unlock()
	if calls != 2 {
		t.Errorf("each trigger must be analyzed exactly once, got %d calls", calls)
	}
}

// TestShutdownDrainsQueue verifies triggers enqueued before shutdown are
// still processed by the drain.
func TestShutdownDrainsQueue(t *testing.T) {
	store := &stubStore{camera: testCamera()}
	p := testProcessor(store, stubGate{allow: true}, &stubAnalyzer{}, nil, nil)

	for i := 0; i < 8; i++ {
		p.Enqueue(trigger(store.camera.ID, time.Now()))
	}

	ctx := context.Background()
	p.Start(ctx)
	p.Shutdown(ctx)

	if evs := store.persisted(); len(evs) != 8 {
		t.Errorf("expected all 8 queued triggers drained, got %d", len(evs))
	}
}

// ctxStore fails every call once the processing context is cancelled,
// the way a real database client does.
type ctxStore struct {
	stubStore
}

func (s *ctxStore) GetCamera(ctx context.Context, id uuid.UUID) (*models.Camera, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.stubStore.GetCamera(ctx, id)
}

func (s *ctxStore) CreateEvent(ctx context.Context, ev *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.stubStore.CreateEvent(ctx, ev)
}

// TestShutdownDrainsWithLiveContext verifies queued triggers finish
// their downstream calls during the drain. The processing context
// handed to Start must stay alive until Shutdown returns; cancelling
// it first turns the drain into fail-everything-fast.
func TestShutdownDrainsWithLiveContext(t *testing.T) {
	store := &ctxStore{stubStore{camera: testCamera()}}
	cfg := config.PipelineConfig{
		QueueCapacity:   50,
		WorkerCount:     2,
		ShutdownTimeout: 2 * time.Second,
		PersistRetries:  3,
		PersistBackoff:  time.Millisecond,
	}
	p := New(cfg, stubGate{allow: true}, &stubAnalyzer{}, nil, nil, stubObjects{}, store, notify.NewFanout(time.Second))

	for i := 0; i < 8; i++ {
		p.Enqueue(trigger(store.camera.ID, time.Now()))
	}

	poolCtx, stopPool := context.WithCancel(context.Background())
	p.Start(poolCtx)
	p.Shutdown(context.Background())
	stopPool()

	if evs := store.persisted(); len(evs) != 8 {
		t.Errorf("expected all 8 queued triggers drained, got %d", len(evs))
	}

	// The same drain against a cancelled pool context persists nothing,
	// which is why the context is only cancelled after Shutdown.
	store2 := &ctxStore{stubStore{camera: testCamera()}}
	p2 := New(cfg, stubGate{allow: true}, &stubAnalyzer{}, nil, nil, stubObjects{}, store2, notify.NewFanout(time.Second))
	for i := 0; i < 8; i++ {
		p2.Enqueue(trigger(store2.camera.ID, time.Now()))
	}

	deadCtx, cancel := context.WithCancel(context.Background())
	cancel()
	p2.Start(deadCtx)
	p2.Shutdown(context.Background())

	if evs := store2.persisted(); len(evs) != 0 {
		t.Errorf("cancelled processing context should persist nothing, got %d", len(evs))
	}
}

// TestEntityClassification verifies object labels map to entity types.
func TestEntityClassification(t *testing.T) {
	cases := []struct {
		objects []string
		want    models.EntityType
	}{
		{[]string{"person"}, models.EntityPerson},
		{[]string{"tree", "Car"}, models.EntityVehicle},
		{[]string{"dog"}, models.EntityUnknown},
		{nil, models.EntityUnknown},
	}
	for _, c := range cases {
		if got := classifyEntity(c.objects); got != c.want {
			t.Errorf("classifyEntity(%v) = %s, want %s", c.objects, got, c.want)
		}
	}
}
