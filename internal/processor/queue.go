package processor

import (
	"sync"

	"github.com/your-org/homewatch/internal/models"
)

// triggerQueue is a bounded FIFO of pending motion triggers. When full,
// Push evicts the oldest pending item so fresh motion is never refused.
type triggerQueue struct {
	mu     sync.Mutex
	notify *sync.Cond
	items  []models.MotionTrigger
	cap    int
	closed bool
}

func newTriggerQueue(capacity int) *triggerQueue {
	q := &triggerQueue{cap: capacity}
	q.notify = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a trigger, returning the evicted oldest item when the
// queue was at capacity. Returns ok=false after Close.
func (q *triggerQueue) Push(t models.MotionTrigger) (dropped *models.MotionTrigger, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false
	}
	if len(q.items) >= q.cap {
		old := q.items[0]
		q.items = q.items[1:]
		dropped = &old
	}
	q.items = append(q.items, t)
	q.notify.Signal()
	return dropped, true
}

// Pop blocks until an item is available or the queue is closed and
// drained. A closed queue still hands out its remaining items in order.
func (q *triggerQueue) Pop() (models.MotionTrigger, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notify.Wait()
	}
	if len(q.items) == 0 {
		return models.MotionTrigger{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// Close stops intake and wakes blocked workers; pending items remain
// poppable until drained or discarded.
func (q *triggerQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.notify.Broadcast()
	q.mu.Unlock()
}

// Discard empties the queue, returning what was still pending. Used when
// shutdown outlives the drain budget; the caller logs each item.
func (q *triggerQueue) Discard() []models.MotionTrigger {
	q.mu.Lock()
	remaining := q.items
	q.items = nil
	q.notify.Broadcast()
	q.mu.Unlock()
	return remaining
}

func (q *triggerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
