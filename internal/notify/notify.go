// Package notify fans out event-created notifications to realtime
// bridges. Deliveries are fire-and-forget: each runs as its own
// supervised goroutine and a failing bridge can never stall or fail the
// pipeline.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/homewatch/internal/models"
)

// Notifier is one delivery bridge (NATS, WebSocket, ...).
type Notifier interface {
	Name() string
	NotifyEvent(ctx context.Context, ev *models.Event) error
}

// Fanout supervises notification deliveries.
type Fanout struct {
	notifiers []Notifier
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewFanout(timeout time.Duration, notifiers ...Notifier) *Fanout {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Fanout{notifiers: notifiers, timeout: timeout}
}

// EventCreated dispatches the event to every bridge without blocking the
// caller. Delivery errors are logged from the completion of each task.
func (f *Fanout) EventCreated(ev *models.Event) {
	for _, n := range f.notifiers {
		f.wg.Add(1)
		go func(n Notifier) {
			defer f.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("notifier panicked", "notifier", n.Name(), "panic", r)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
			defer cancel()

			if err := n.NotifyEvent(ctx, ev); err != nil {
				slog.Warn("notification failed", "notifier", n.Name(), "event_id", ev.ID, "error", err)
			}
		}(n)
	}
}

// Wait blocks until in-flight deliveries settle or the context expires.
// Used during graceful shutdown.
func (f *Fanout) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown with notifications still in flight")
	}
}

// EventPublisher is the queue-producer slice the NATS bridge needs.
type EventPublisher interface {
	PublishEvent(ctx context.Context, cameraID string, data interface{}) error
}

// NATSNotifier publishes event-created messages onto the EVENTS stream.
type NATSNotifier struct {
	producer EventPublisher
}

func NewNATSNotifier(producer EventPublisher) *NATSNotifier {
	return &NATSNotifier{producer: producer}
}

func (n *NATSNotifier) Name() string { return "nats" }

func (n *NATSNotifier) NotifyEvent(ctx context.Context, ev *models.Event) error {
	return n.producer.PublishEvent(ctx, ev.CameraID.String(), ev)
}

// Broadcaster is the hub slice the WebSocket bridge needs.
type Broadcaster interface {
	BroadcastEvent(ev *models.Event)
}

// WSNotifier pushes events to connected WebSocket clients.
type WSNotifier struct {
	hub Broadcaster
}

func NewWSNotifier(hub Broadcaster) *WSNotifier {
	return &WSNotifier{hub: hub}
}

func (n *WSNotifier) Name() string { return "websocket" }

func (n *WSNotifier) NotifyEvent(_ context.Context, ev *models.Event) error {
	n.hub.BroadcastEvent(ev)
	return nil
}
