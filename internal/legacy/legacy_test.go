package legacy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/enso/internal/db"
	"github.com/soyeahso/enso/internal/logging"
	"github.com/soyeahso/enso/internal/storage"
	"github.com/soyeahso/enso/internal/todo"
)

func setup(t *testing.T, blob map[string]any) (*storage.Adapter, *todo.Service) {
	t.Helper()
	log := logging.New(nil, "silent")
	database, err := db.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	backend := storage.NewMemoryBackend()
	if blob != nil {
		require.NoError(t, backend.Put(context.Background(), TodosKey, blob))
	}
	return storage.NewAdapter(backend, TodosKey), todo.NewService(database, log)
}

func legacyBlob() map[string]any {
	return map[string]any{
		"version": 0.0,
		"state": map[string]any{
			"tasks": map[string]any{
				"/src/enso": []any{
					map[string]any{"id": "a", "title": "Fix login", "status": "in-progress", "priority": "high", "order": 3.0, "createdAt": 1000.0},
					map[string]any{"id": "b", "title": "Write docs", "status": "todo", "order": 7.0},
					map[string]any{"id": "c", "title": "Triage", "status": "todo", "order": 2.0},
					map[string]any{"id": "d", "title": "  "},
					"garbage",
				},
				"/src/other": []any{
					map[string]any{"title": "Ship it", "status": "done", "priority": "urgent"},
				},
			},
		},
	}
}

func TestMigrateTodos_Skipped(t *testing.T) {
	src, svc := setup(t, nil)
	res := MigrateTodos(context.Background(), src, svc, logging.New(nil, "silent"))
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Zero(t, res.Imported)
}

func TestMigrateTodos_ImportsAndDeletesKey(t *testing.T) {
	ctx := context.Background()
	src, svc := setup(t, legacyBlob())

	res := MigrateTodos(ctx, src, svc, logging.New(nil, "silent"))
	assert.Equal(t, StatusMigrated, res.Status)
	assert.Equal(t, 4, res.Imported)
	assert.Equal(t, 2, res.Dropped)
	assert.Empty(t, res.Error)

	left, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, left, "legacy key is removed after a successful import")

	tasks, err := svc.List(ctx, "/src/enso")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "c", tasks[0].ID)
	assert.Equal(t, 0, tasks[0].Order)
	assert.Equal(t, "b", tasks[1].ID)
	assert.Equal(t, 1, tasks[1].Order)
	assert.Equal(t, "a", tasks[2].ID)
	assert.Equal(t, todo.StatusInProgress, tasks[2].Status)
	assert.Equal(t, todo.PriorityHigh, tasks[2].Priority)
	assert.Equal(t, int64(1000), tasks[2].CreatedAt)

	other, err := svc.List(ctx, "/src/other")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, todo.StatusDone, other[0].Status)
	assert.Equal(t, todo.PriorityMedium, other[0].Priority)

	again := MigrateTodos(ctx, src, svc, logging.New(nil, "silent"))
	assert.Equal(t, StatusSkipped, again.Status)
}

// stuckSource never lets go of the legacy key.
type stuckSource struct {
	*storage.Adapter
}

func (stuckSource) RemoveKey(context.Context, string) error {
	return errors.New("read-only store")
}

func TestMigrateTodos_RetryAfterFailedRemoveDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	adapter, svc := setup(t, legacyBlob())
	src := stuckSource{adapter}
	log := logging.New(nil, "silent")

	first := MigrateTodos(ctx, src, svc, log)
	assert.Equal(t, StatusMigrated, first.Status)
	assert.Equal(t, "read-only store", first.Error)

	other, err := svc.List(ctx, "/src/other")
	require.NoError(t, err)
	require.Len(t, other, 1)
	id := other[0].ID
	assert.NotEmpty(t, id)

	second := MigrateTodos(ctx, src, svc, log)
	assert.Equal(t, StatusMigrated, second.Status)
	assert.Equal(t, first.Imported, second.Imported)

	other, err = svc.List(ctx, "/src/other")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, id, other[0].ID)

	tasks, err := svc.List(ctx, "/src/enso")
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestLegacyID(t *testing.T) {
	base := legacyID("/src/app", 0, "Ship it", 0)
	assert.Equal(t, base, legacyID("/src/app", 0, "Ship it", 0))
	assert.NotEqual(t, base, legacyID("/src/app", 1, "Ship it", 0), "same title at another position")
	assert.NotEqual(t, base, legacyID("/src/web", 0, "Ship it", 0))
	assert.NotEqual(t, base, legacyID("/src/app", 0, "Ship it", 5))
}

type failingImporter struct{}

func (failingImporter) Import(context.Context, []todo.Task) (int, error) {
	return 0, errors.New("disk full")
}

func TestMigrateTodos_ImportFailureKeepsKey(t *testing.T) {
	ctx := context.Background()
	src, _ := setup(t, legacyBlob())

	res := MigrateTodos(ctx, src, failingImporter{}, logging.New(nil, "silent"))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "disk full")

	left, err := src.Read(ctx)
	require.NoError(t, err)
	assert.NotNil(t, left)
}

func TestMigrateTodos_MalformedKeepsKey(t *testing.T) {
	ctx := context.Background()
	src, svc := setup(t, map[string]any{"state": "nope"})

	res := MigrateTodos(ctx, src, svc, logging.New(nil, "silent"))
	assert.Equal(t, StatusFailed, res.Status)

	left, err := src.Read(ctx)
	require.NoError(t, err)
	assert.NotNil(t, left)
}

func TestMigrateTodos_EmptyStateStillClears(t *testing.T) {
	ctx := context.Background()
	src, svc := setup(t, map[string]any{"state": map[string]any{}})

	res := MigrateTodos(ctx, src, svc, logging.New(nil, "silent"))
	assert.Equal(t, StatusMigrated, res.Status)
	assert.Zero(t, res.Imported)

	left, err := src.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, left)
}

func TestLegacyStatus(t *testing.T) {
	tests := map[string]todo.Status{
		"todo":        todo.StatusTodo,
		"":            todo.StatusTodo,
		"In-Progress": todo.StatusInProgress,
		"review":      todo.StatusInReview,
		"in_review":   todo.StatusInReview,
		"completed":   todo.StatusDone,
		"weird":       todo.StatusTodo,
	}
	for in, want := range tests {
		assert.Equal(t, want, legacyStatus(in), in)
	}
}

func TestResult_Payload(t *testing.T) {
	p := Result{Status: StatusMigrated, Imported: 2}.Payload()
	assert.Equal(t, map[string]any{"status": "migrated", "imported": 2}, p)
}
