package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/enso/internal/hooks"
	"github.com/soyeahso/enso/internal/logging"
	"github.com/soyeahso/enso/internal/settings"
	"github.com/soyeahso/enso/internal/storage"
)

// fakePersister records writes and can be told to fail.
type fakePersister struct {
	mu       sync.Mutex
	blob     map[string]any
	readErr  error
	writeErr error
	writes   []map[string]any
	block    chan struct{}
}

func (f *fakePersister) Read(context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blob, f.readErr
}

func (f *fakePersister) Write(_ context.Context, data map[string]any) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.blob = data
	return nil
}

func (f *fakePersister) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakePersister) lastState(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.writes)
	state, ok := f.writes[len(f.writes)-1]["state"].(map[string]any)
	require.True(t, ok)
	return state
}

type event struct {
	name string
	data map[string]any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingNotifier) Enqueue(name string, data map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name, data})
}

func (r *recordingNotifier) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.name
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recordingNotifier) find(name string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.name == name {
			return e.data, true
		}
	}
	return nil, false
}

func newTestStore(t *testing.T, p Persister) (*Store, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	s := New(p, n, logging.New(nil, "silent"), WithPlatform("linux"))
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, n
}

func readyStore(t *testing.T) (*Store, *fakePersister, *recordingNotifier) {
	t.Helper()
	p := &fakePersister{}
	s, n := newTestStore(t, p)
	_, err := s.Init(context.Background())
	require.NoError(t, err)
	n.reset()
	return s, p, n
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}

func TestStore_Lifecycle(t *testing.T) {
	s, _ := newTestStore(t, &fakePersister{})
	assert.Equal(t, Uninitialized, s.Phase())
	assert.Equal(t, settings.Defaults("linux"), s.Snapshot())
	assert.ErrorIs(t, s.SetTheme("dark"), ErrNotReady)

	report, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, report.FirstRun)
	assert.Equal(t, Ready, s.Phase())
	assert.Equal(t, "ready", s.Phase().String())

	_, err = s.Init(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.NoError(t, s.SetTheme("dark"))
}

func TestStore_InitFirstRunDoesNotWrite(t *testing.T) {
	s, p, _ := readyStore(t)
	flush(t, s)
	assert.Equal(t, 0, p.writeCount())
}

func TestStore_InitReadFailureUsesDefaults(t *testing.T) {
	p := &fakePersister{readErr: errors.New("disk on fire")}
	s, _ := newTestStore(t, p)

	report, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.True(t, report.FirstRun)
	assert.Equal(t, settings.Defaults("linux"), s.Snapshot())
}

func TestStore_InitNonObjectStateUsesDefaults(t *testing.T) {
	p := &fakePersister{blob: map[string]any{"state": "garbage", "version": float64(3)}}
	s, _ := newTestStore(t, p)

	_, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults("linux"), s.Snapshot())
}

func TestStore_InitMigratesAndCleansLegacyKeys(t *testing.T) {
	p := &fakePersister{blob: map[string]any{
		"version": float64(2),
		"state": map[string]any{
			"theme":               "dark",
			"terminalRenderer":    "canvas",
			"terminalKeybindings": map[string]any{"newTab": map[string]any{"key": "t", "meta": true}},
		},
	}}
	s, _ := newTestStore(t, p)

	report, err := s.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"terminalKeybindings"}, report.LegacyKeys)
	assert.Equal(t, report, s.Report())

	snap := s.Snapshot()
	assert.Equal(t, "dark", snap.Theme)
	assert.Equal(t, "webgl", snap.TerminalRenderer)
	assert.Equal(t, settings.Keybinding{Key: "t", Meta: true}, snap.XtermKeybindings.NewTab)

	flush(t, s)
	state := p.lastState(t)
	assert.NotContains(t, state, "terminalKeybindings")
	assert.Equal(t, "webgl", state["terminalRenderer"])
	assert.Equal(t, settings.SchemaVersion, p.writes[len(p.writes)-1]["version"])
}

func TestStore_InitCurrentStateDoesNotRewrite(t *testing.T) {
	p := &fakePersister{blob: map[string]any{
		"version": float64(settings.SchemaVersion),
		"state":   settings.Defaults("linux").ToRaw(),
	}}
	s, _ := newTestStore(t, p)

	_, err := s.Init(context.Background())
	require.NoError(t, err)
	flush(t, s)
	assert.Equal(t, 0, p.writeCount())
}

func TestStore_InitReplaysHostState(t *testing.T) {
	state := settings.Defaults("linux").ToRaw()
	state["language"] = "zh"
	state["webInspectorEnabled"] = true
	p := &fakePersister{blob: map[string]any{"state": state, "version": float64(3)}}
	s, n := newTestStore(t, p)

	_, err := s.Init(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		hooks.EventSetLanguage,
		hooks.EventAppearanceChanged,
		hooks.EventWebInspectorStart,
	}, n.names())
	data, _ := n.find(hooks.EventSetLanguage)
	assert.Equal(t, "zh", data["language"])
}

func TestStore_SetterPersistsFullSnapshot(t *testing.T) {
	s, p, _ := readyStore(t)

	require.NoError(t, s.SetTheme("dark"))
	require.NoError(t, s.UpdateEditor(func(e *settings.EditorSettings) { e.TabSize = 4 }))
	flush(t, s)

	state := p.lastState(t)
	assert.Equal(t, "dark", state["theme"])
	assert.Equal(t, float64(4), state["editor"].(map[string]any)["tabSize"])
	assert.Contains(t, state, "xtermKeybindings")
	assert.Contains(t, state, "agentSettings")
}

func TestStore_SetterIsSynchronous(t *testing.T) {
	s, p, _ := readyStore(t)
	p.block = make(chan struct{})

	require.NoError(t, s.SetTheme("light"))
	assert.Equal(t, "light", s.Snapshot().Theme)

	close(p.block)
	flush(t, s)
}

func TestStore_WritesCoalesceToLatest(t *testing.T) {
	s, p, _ := readyStore(t)
	p.block = make(chan struct{})

	for _, size := range []int{11, 12, 13, 14, 15, 16} {
		require.NoError(t, s.SetFontSize(size))
	}
	close(p.block)
	flush(t, s)

	assert.LessOrEqual(t, p.writeCount(), 6)
	assert.Equal(t, float64(16), p.lastState(t)["fontSize"])
}

func TestStore_WriteFailureKeepsMemoryState(t *testing.T) {
	s, p, _ := readyStore(t)
	p.writeErr = errors.New("read-only file system")

	require.NoError(t, s.SetTheme("dark"))
	flush(t, s)

	assert.Equal(t, "dark", s.Snapshot().Theme)
	assert.Equal(t, 1, s.WriteFailures())
	assert.Equal(t, 1, p.writeCount(), "failed writes are not retried")
}

func TestStore_TransientFieldNeverPersisted(t *testing.T) {
	s, p, n := readyStore(t)

	require.NoError(t, s.BumpBackgroundRefresh())
	require.NoError(t, s.BumpBackgroundRefresh())
	flush(t, s)
	assert.Equal(t, 2, s.Snapshot().BackgroundRefreshKey)
	assert.Equal(t, 0, p.writeCount())
	assert.Contains(t, n.names(), hooks.EventAppearanceChanged)

	require.NoError(t, s.UpdateBackground(func(b *settings.BackgroundSettings) {
		b.BackgroundOpacity = 0.5
		b.BackgroundRefreshKey = 99
	}))
	flush(t, s)
	assert.Equal(t, 2, s.Snapshot().BackgroundRefreshKey)
	state := p.lastState(t)
	assert.NotContains(t, state, "backgroundRefreshKey")
	assert.Equal(t, 0.5, state["backgroundOpacity"])
}

func TestStore_UpdateClampsAndRejects(t *testing.T) {
	s, _, _ := readyStore(t)

	require.NoError(t, s.UpdateBackground(func(b *settings.BackgroundSettings) { b.BackgroundOpacity = 5 }))
	assert.Equal(t, 1.0, s.Snapshot().BackgroundOpacity)

	require.NoError(t, s.UpdateEditor(func(e *settings.EditorSettings) {
		e.WordWrap = "sometimes"
		e.TabSize = 0
	}))
	snap := s.Snapshot()
	assert.Equal(t, settings.Defaults("linux").Editor.WordWrap, snap.Editor.WordWrap)
	assert.Equal(t, 1, snap.Editor.TabSize)

	require.NoError(t, s.SetFontSize(100))
	assert.Equal(t, 32, s.Snapshot().FontSize)

	var ve *ValueError
	assert.ErrorAs(t, s.SetTheme("neon"), &ve)
	assert.Equal(t, "theme", ve.Field)
	assert.ErrorAs(t, s.SetLanguage("fr"), &ve)
	assert.ErrorAs(t, s.SetFontFamily("  "), &ve)
	assert.ErrorAs(t, s.SetLogging(settings.LoggingSettings{Level: "trace"}), &ve)
}

func TestStore_SideEffects(t *testing.T) {
	tests := []struct {
		name   string
		set    func(s *Store) error
		events []string
	}{
		{
			name:   "language",
			set:    func(s *Store) error { return s.SetLanguage("zh") },
			events: []string{hooks.EventSetLanguage, hooks.EventSettingsChanged},
		},
		{
			name: "language by path",
			set: func(s *Store) error {
				_, err := s.Apply("language", "zh")
				return err
			},
			events: []string{hooks.EventSetLanguage, hooks.EventSettingsChanged},
		},
		{
			name:   "font size",
			set:    func(s *Store) error { return s.SetFontSize(18) },
			events: []string{hooks.EventAppearanceChanged, hooks.EventSettingsChanged},
		},
		{
			name: "proxy",
			set: func(s *Store) error {
				return s.SetProxy(settings.ProxySettings{Enabled: true, Server: "http://127.0.0.1:7890"})
			},
			events: []string{hooks.EventSetProxy, hooks.EventSettingsChanged},
		},
		{
			name: "logging",
			set: func(s *Store) error {
				return s.SetLogging(settings.LoggingSettings{Enabled: true, Level: "debug"})
			},
			events: []string{hooks.EventUpdateLogConfig, hooks.EventSettingsChanged},
		},
		{
			name:   "web inspector on",
			set:    func(s *Store) error { return s.SetWebInspectorEnabled(true) },
			events: []string{hooks.EventWebInspectorStart, hooks.EventSettingsChanged},
		},
		{
			name:   "theme",
			set:    func(s *Store) error { return s.SetTheme("dark") },
			events: []string{hooks.EventAppearanceChanged, hooks.EventSettingsChanged},
		},
		{
			name:   "editor only",
			set:    func(s *Store) error { return s.UpdateEditor(func(e *settings.EditorSettings) { e.MinimapEnabled = true }) },
			events: []string{hooks.EventSettingsChanged},
		},
		{
			name:   "no change",
			set:    func(s *Store) error { return s.SetTheme("system") },
			events: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, n := readyStore(t)
			require.NoError(t, tt.set(s))
			assert.Equal(t, tt.events, append([]string{}, n.names()...))
		})
	}
}

func TestStore_SettingsChangedCarriesDomainAndRevision(t *testing.T) {
	s, _, n := readyStore(t)

	require.NoError(t, s.UpdateCodeReview(func(c *settings.CodeReviewSettings) { c.Model = "opus" }))
	data, ok := n.find(hooks.EventSettingsChanged)
	require.True(t, ok)
	assert.Equal(t, "codeReview", data["domain"])
	assert.Equal(t, uint64(1), data["revision"])
	assert.Equal(t, uint64(1), s.Revision())
}

func TestStore_SetProxyPayload(t *testing.T) {
	s, _, n := readyStore(t)

	require.NoError(t, s.SetProxy(settings.ProxySettings{Enabled: true, Server: " http://proxy:8080 ", BypassList: "localhost"}))
	data, ok := n.find(hooks.EventSetProxy)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"enabled": true, "server": "http://proxy:8080", "bypassList": "localhost"}, data)
}

func TestStore_Get(t *testing.T) {
	s, _, _ := readyStore(t)

	v, err := s.Get("editor.tabSize")
	require.NoError(t, err)
	assert.Equal(t, float64(2), v)

	_, err = s.Get("editor.nope")
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = s.Get("constructor")
	var pe *settings.PathError
	assert.ErrorAs(t, err, &pe)
}

func TestStore_Apply(t *testing.T) {
	s, _, n := readyStore(t)

	got, err := s.Apply("editor.tabSize", 4)
	require.NoError(t, err)
	assert.Equal(t, float64(4), got)
	assert.Equal(t, 4, s.Snapshot().Editor.TabSize)

	got, err = s.Apply("backgroundOpacity", "7")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = s.Apply("theme", "neon")
	require.NoError(t, err)
	assert.Equal(t, "system", got, "rejected value leaves previous")

	got, err = s.Apply("xtermKeybindings.newTab.meta", true)
	require.NoError(t, err)
	assert.Equal(t, true, got)
	assert.Equal(t, settings.Keybinding{Key: "t", Ctrl: true, Meta: true}, s.Snapshot().XtermKeybindings.NewTab)

	n.reset()
	_, err = s.Apply("language", "zh")
	require.NoError(t, err)
	assert.Contains(t, n.names(), hooks.EventSetLanguage)

	_, err = s.Apply("nonsense.field", 1)
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = s.Apply("", 1)
	assert.Error(t, err)
}

func TestStore_Reset(t *testing.T) {
	s, _, _ := readyStore(t)
	require.NoError(t, s.SetTheme("dark"))
	require.NoError(t, s.BumpBackgroundRefresh())

	require.NoError(t, s.Reset())
	snap := s.Snapshot()
	assert.Equal(t, "system", snap.Theme)
	assert.Equal(t, 1, snap.BackgroundRefreshKey)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s, _, _ := readyStore(t)
	snap := s.Snapshot()
	snap.AgentSettings["claude"] = settings.AgentConfig{}
	snap.Theme = "dark"

	again := s.Snapshot()
	assert.True(t, again.AgentSettings["claude"].IsDefault)
	assert.Equal(t, "system", again.Theme)
}

func TestStore_CloseFlushesAndStops(t *testing.T) {
	s, p, _ := readyStore(t)
	require.NoError(t, s.SetTheme("dark"))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, "dark", p.lastState(t)["theme"])

	require.NoError(t, s.SetTheme("light"))
	assert.Equal(t, "light", s.Snapshot().Theme)
	require.NoError(t, s.Flush(context.Background()))
	assert.Equal(t, 1, p.writeCount())
}

func TestStore_WithStorageAdapter(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Put(ctx, "enso-todos", map[string]any{"state": map[string]any{}}))

	s, _ := newTestStore(t, storage.NewAdapter(backend, settings.StoreKey))
	_, err := s.Init(ctx)
	require.NoError(t, err)
	require.NoError(t, s.SetTheme("dark"))
	flush(t, s)

	keys, err := backend.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"enso-settings", "enso-todos"}, keys)

	reloaded, _ := newTestStore(t, storage.NewAdapter(backend, settings.StoreKey))
	_, err = reloaded.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), reloaded.Snapshot())
}

func TestStore_ConcurrentSetters(t *testing.T) {
	s, p, _ := readyStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SetFontSize(10 + i)
			_ = s.UpdateEditor(func(e *settings.EditorSettings) { e.TabSize = 1 + i%8 })
		}(i)
	}
	wg.Wait()
	flush(t, s)

	state := p.lastState(t)
	snap := s.Snapshot()
	assert.Equal(t, float64(snap.FontSize), state["fontSize"])
	assert.Equal(t, float64(snap.Editor.TabSize), state["editor"].(map[string]any)["tabSize"])
}
