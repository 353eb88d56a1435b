// Package store is the settings facade: it owns the live snapshot, loads
// and migrates it once at startup, validates every mutation and persists
// the full snapshot asynchronously after each change.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/soyeahso/enso/internal/hooks"
	"github.com/soyeahso/enso/internal/logging"
	"github.com/soyeahso/enso/internal/migrate"
	"github.com/soyeahso/enso/internal/settings"
)

var (
	ErrNotReady           = errors.New("store: not initialized")
	ErrAlreadyInitialized = errors.New("store: already initialized")
	ErrUnknownAgent       = errors.New("store: unknown agent")
	ErrAgentDisabled      = errors.New("store: agent is not enabled")
	ErrDuplicateAgent     = errors.New("store: agent already exists")
	ErrBuiltinAgent       = errors.New("store: built-in agents cannot be removed")
	ErrUnknownField       = errors.New("store: unknown settings field")
)

// ValueError reports a value rejected by a typed setter.
type ValueError struct {
	Field string
	Value any
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("store: invalid value %v for %s", e.Value, e.Field)
}

// Persister is the persistence channel for the settings key.
// *storage.Adapter satisfies it.
type Persister interface {
	Read(ctx context.Context) (map[string]any, error)
	Write(ctx context.Context, data map[string]any) error
}

// Notifier receives outbound events. Enqueue must not block;
// *hooks.Queue satisfies it.
type Notifier interface {
	Enqueue(event string, data map[string]any)
}

// Phase is the store lifecycle position.
type Phase int

const (
	Uninitialized Phase = iota
	Ready
)

func (p Phase) String() string {
	if p == Ready {
		return "ready"
	}
	return "uninitialized"
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults replaces the default table, mostly for tests.
func WithDefaults(d settings.Snapshot) Option {
	return func(s *Store) { s.defaults = d.Clone() }
}

// WithPlatform selects the platform whose defaults are used.
func WithPlatform(platform string) Option {
	return func(s *Store) { s.defaults = settings.Defaults(platform) }
}

// Store is the settings facade. It is safe for concurrent use; mutations
// are serialized and each one is applied to the snapshot before the call
// returns.
type Store struct {
	persist  Persister
	notify   Notifier
	log      *logging.Logger
	defaults settings.Snapshot

	mu       sync.Mutex
	phase    Phase
	snap     settings.Snapshot
	report   migrate.Report
	revision uint64

	writer *writer
}

// New creates an uninitialized store. A nil notifier discards events.
func New(persist Persister, notify Notifier, log *logging.Logger, opts ...Option) *Store {
	if notify == nil {
		notify = discard{}
	}
	s := &Store{
		persist:  persist,
		notify:   notify,
		log:      log.Sub("store"),
		defaults: settings.Defaults(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap = s.defaults.Clone()
	return s
}

type discard struct{}

func (discard) Enqueue(string, map[string]any) {}

// Init reads the persisted blob, migrates it against the defaults and
// moves the store to Ready. A read failure is logged and treated as a
// first run. Init succeeds at most once.
func (s *Store) Init(ctx context.Context) (migrate.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Uninitialized {
		return migrate.Report{}, ErrAlreadyInitialized
	}

	blob, err := s.persist.Read(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("reading persisted settings failed, using defaults")
		blob = nil
	}
	state, version := s.unwrap(blob)

	snap, report := migrate.Migrate(state, s.defaults)
	s.snap = snap
	s.report = report
	s.phase = Ready
	s.writer = newWriter(s.persist, s.log)

	ev := s.log.Info().Bool("first_run", report.FirstRun).Float64("version", version)
	if report.Changed() {
		ev = ev.Strs("legacy_keys", report.LegacyKeys).
			Strs("repairs", report.Repairs).
			Strs("dropped_detection", report.DroppedDetection).
			Int("value_changes", len(report.ValueChanges))
	}
	ev.Msg("settings loaded")

	if report.Changed() || (!report.FirstRun && version != settings.SchemaVersion) {
		s.writer.submit(s.blobLocked())
	}

	for _, e := range initialEffects(s.snap) {
		s.notify.Enqueue(e.event, e.data)
	}
	return report, nil
}

// unwrap extracts the state object and schema version from the persisted
// blob. Anything unusable is treated as no persisted state.
func (s *Store) unwrap(blob map[string]any) (migrate.Raw, float64) {
	if blob == nil {
		return nil, 0
	}
	version, _ := blob["version"].(float64)
	raw, ok := blob["state"]
	if !ok || raw == nil {
		return nil, version
	}
	state, ok := raw.(map[string]any)
	if !ok {
		s.log.Warn().Str("type", fmt.Sprintf("%T", raw)).Msg("persisted state is not an object, using defaults")
		return nil, version
	}
	return state, version
}

// Phase returns the lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a copy of the live settings. Before Init it is the
// default table.
func (s *Store) Snapshot() settings.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// Report returns the migration report produced by Init.
func (s *Store) Report() migrate.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Revision increments on every mutation that changed the snapshot.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Get returns the value at a dot-separated path of the persisted shape,
// e.g. "editor.tabSize".
func (s *Store) Get(path string) (any, error) {
	segments, err := settings.ParsePath(path)
	if err != nil {
		return nil, err
	}
	raw := s.Snapshot().ToRaw()
	v, ok := settings.GetValueAtPath(raw, segments)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, path)
	}
	return v, nil
}

// Flush waits until every scheduled write has been attempted.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.flush(ctx)
}

// Close flushes pending writes and stops the writer. The store keeps
// serving reads; further mutations are applied in memory only.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	err := w.flush(ctx)
	w.close()
	return err
}

// WriteFailures returns the number of persistence writes that failed.
func (s *Store) WriteFailures() int {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	if w == nil {
		return 0
	}
	return w.failureCount()
}

// mutation describes one setter call.
type mutation struct {
	domain string
	// transient mutations change only non-persisted fields.
	transient bool
	apply     func(*settings.Snapshot) error
}

// mutate applies m to a copy of the snapshot, adopts it, schedules a write
// and enqueues the side effects implied by the change.
func (s *Store) mutate(m mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Ready {
		return ErrNotReady
	}

	prev := s.snap
	next := prev.Clone()
	if err := m.apply(&next); err != nil {
		return err
	}
	if reflect.DeepEqual(prev, next) {
		return nil
	}
	s.snap = next
	s.revision++

	if !m.transient {
		s.writer.submit(s.blobLocked())
	}
	for _, e := range diffEffects(prev, next) {
		s.notify.Enqueue(e.event, e.data)
	}
	s.notify.Enqueue(hooks.EventSettingsChanged, map[string]any{
		"domain":   m.domain,
		"revision": s.revision,
	})
	return nil
}

// blobLocked builds the persisted form of the current snapshot.
func (s *Store) blobLocked() map[string]any {
	return map[string]any{
		"state":   s.snap.ToRaw(),
		"version": settings.SchemaVersion,
	}
}
