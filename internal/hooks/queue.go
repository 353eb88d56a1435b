package hooks

import (
	"context"
	"sync"

	"github.com/soyeahso/enso/internal/logging"
)

// DefaultQueueSize bounds the number of undelivered events.
const DefaultQueueSize = 256

// Queue decouples event producers from handler execution. Enqueue never
// blocks; a single Run loop delivers events to the Manager in order. When
// the queue is full the oldest event is dropped.
type Queue struct {
	mgr   *Manager
	log   *logging.Logger
	limit int

	mu       sync.Mutex
	items    []Payload
	idle     chan struct{}
	idleDone bool
	dropped  int

	wake chan struct{}
}

// NewQueue creates a queue delivering to mgr. A size <= 0 uses DefaultQueueSize.
func NewQueue(mgr *Manager, log *logging.Logger, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		mgr:      mgr,
		log:      log.Sub("hooks.queue"),
		limit:    size,
		idle:     idle,
		idleDone: true,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue schedules event for delivery and returns immediately.
func (q *Queue) Enqueue(event string, data map[string]any) {
	q.mu.Lock()
	if len(q.items) >= q.limit {
		q.log.Warn().Str("event", q.items[0].Event).Msg("event queue full, dropping oldest")
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, Payload{Event: event, Data: data})
	if q.idleDone {
		q.idle = make(chan struct{})
		q.idleDone = false
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued events until ctx is done. Handler failures are
// logged by the Manager and never stop the loop.
func (q *Queue) Run(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			if !q.idleDone {
				close(q.idle)
				q.idleDone = true
			}
			q.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}
		p := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.mgr.Emit(ctx, p.Event, p.Data)
	}
}

// Drain blocks until every queued event has been delivered or ctx is done.
// It requires Run to be active.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of events waiting for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
