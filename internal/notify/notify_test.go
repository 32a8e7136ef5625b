package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/models"
)

type countingNotifier struct {
	name  string
	calls atomic.Int64
	err   error
	panic bool
	block time.Duration
}

func (n *countingNotifier) Name() string { return n.name }

func (n *countingNotifier) NotifyEvent(ctx context.Context, _ *models.Event) error {
	n.calls.Add(1)
	if n.panic {
		panic("bridge exploded")
	}
	if n.block > 0 {
		select {
		case <-time.After(n.block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return n.err
}

func event() *models.Event {
	return &models.Event{ID: uuid.New(), CameraID: uuid.New()}
}

// TestFanoutReachesAllBridges verifies every bridge receives the event
// even when one of them fails.
func TestFanoutReachesAllBridges(t *testing.T) {
	broken := &countingNotifier{name: "broken", err: errors.New("connection refused")}
	healthy := &countingNotifier{name: "healthy"}
	f := NewFanout(time.Second, broken, healthy)

	f.EventCreated(event())
	f.Wait(context.Background())

	if broken.calls.Load() != 1 || healthy.calls.Load() != 1 {
		t.Error("every bridge must be attempted exactly once")
	}
}

// TestFanoutSurvivesPanic verifies a panicking bridge does not take the
// fanout down with it.
func TestFanoutSurvivesPanic(t *testing.T) {
	bomb := &countingNotifier{name: "bomb", panic: true}
	healthy := &countingNotifier{name: "healthy"}
	f := NewFanout(time.Second, bomb, healthy)

	f.EventCreated(event())
	f.Wait(context.Background())

	if healthy.calls.Load() != 1 {
		t.Error("healthy bridge must still be notified")
	}
}

// TestFanoutNeverBlocksCaller verifies dispatch returns immediately even
// when a bridge is slow.
func TestFanoutNeverBlocksCaller(t *testing.T) {
	slow := &countingNotifier{name: "slow", block: 500 * time.Millisecond}
	f := NewFanout(time.Second, slow)

	start := time.Now()
	f.EventCreated(event())
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("dispatch blocked for %s", elapsed)
	}
	f.Wait(context.Background())
}

// TestWaitHonoursContext verifies shutdown does not hang on a stuck
// bridge forever.
func TestWaitHonoursContext(t *testing.T) {
	stuck := &countingNotifier{name: "stuck", block: 10 * time.Second}
	f := NewFanout(time.Minute, stuck)

	f.EventCreated(event())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	f.Wait(ctx)
	if time.Since(start) > time.Second {
		t.Error("Wait must return once its context expires")
	}
}
