package store

import (
	"context"
	"sync"

	"github.com/soyeahso/enso/internal/logging"
)

// writer persists snapshots on a single goroutine. Submissions that arrive
// while a write is in flight coalesce into the latest one, so writes reach
// the persister in order and each carries one whole snapshot.
type writer struct {
	persist Persister
	log     *logging.Logger

	mu       sync.Mutex
	pending  map[string]any
	gen      uint64 // last submitted
	written  uint64 // last attempted
	failures int
	progress chan struct{} // closed and replaced whenever written advances

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newWriter(p Persister, log *logging.Logger) *writer {
	ctx, cancel := context.WithCancel(context.Background())
	w := &writer{
		persist:  p,
		log:      log,
		progress: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go w.loop()
	return w
}

func (w *writer) submit(blob map[string]any) {
	w.mu.Lock()
	w.pending = blob
	w.gen++
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			w.writePending()
			return
		case <-w.wake:
			w.writePending()
		}
	}
}

func (w *writer) writePending() {
	w.mu.Lock()
	blob, gen := w.pending, w.gen
	w.pending = nil
	w.mu.Unlock()
	if blob == nil {
		return
	}

	err := w.persist.Write(w.ctx, blob)

	w.mu.Lock()
	if err != nil {
		w.failures++
		w.log.Error().Err(err).Uint64("generation", gen).Msg("persisting settings failed, change kept in memory only")
	} else {
		w.log.Debug().Uint64("generation", gen).Msg("settings persisted")
	}
	w.written = gen
	close(w.progress)
	w.progress = make(chan struct{})
	w.mu.Unlock()
}

// flush waits until every submission made before the call was attempted.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	target := w.gen
	for w.written < target {
		ch := w.progress
		w.mu.Unlock()
		select {
		case <-ch:
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		w.mu.Lock()
	}
	w.mu.Unlock()
	return nil
}

func (w *writer) close() {
	w.once.Do(func() {
		close(w.stop)
		<-w.done
		w.cancel()
	})
}

func (w *writer) failureCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}
