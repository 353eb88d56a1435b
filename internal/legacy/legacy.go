// Package legacy moves data left behind by older releases into its current
// home. Each entry point runs once during startup and reports what it did.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/soyeahso/enso/internal/logging"
	"github.com/soyeahso/enso/internal/sanitize"
	"github.com/soyeahso/enso/internal/todo"
)

// TodosKey is the store name the old board used for its tasks.
const TodosKey = "enso-todos"

var ErrMalformed = errors.New("legacy: malformed todo blob")

// Status is the outcome of a one-shot migration.
type Status string

const (
	StatusSkipped  Status = "skipped"
	StatusMigrated Status = "migrated"
	StatusFailed   Status = "failed"
)

// Result reports a one-shot migration.
type Result struct {
	Status   Status `json:"status"`
	Imported int    `json:"imported"`
	Dropped  int    `json:"dropped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Payload is the hook event data for the result.
func (r Result) Payload() map[string]any {
	data := map[string]any{"status": string(r.Status), "imported": r.Imported}
	if r.Dropped > 0 {
		data["dropped"] = r.Dropped
	}
	if r.Error != "" {
		data["error"] = r.Error
	}
	return data
}

// Source is the persistence channel bound to TodosKey.
// *storage.Adapter satisfies it.
type Source interface {
	Read(ctx context.Context) (map[string]any, error)
	RemoveKey(ctx context.Context, name string) error
}

// Importer writes tasks atomically. *todo.Service satisfies it.
type Importer interface {
	Import(ctx context.Context, tasks []todo.Task) (int, error)
}

// MigrateTodos forwards the legacy task blob to the todo service. The
// legacy key is deleted only after every task was imported; on any failure
// it is left in place so the next start retries.
func MigrateTodos(ctx context.Context, src Source, dst Importer, log *logging.Logger) Result {
	log = log.Sub("legacy")

	blob, err := src.Read(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("reading legacy todos failed")
		return failed(err)
	}
	if blob == nil {
		return Result{Status: StatusSkipped}
	}

	tasks, dropped, err := parseTodos(blob)
	if err != nil {
		log.Warn().Err(err).Msg("legacy todos left in place")
		return failed(err)
	}

	n, err := dst.Import(ctx, tasks)
	if err != nil {
		log.Error().Err(err).Int("tasks", len(tasks)).Msg("importing legacy todos failed")
		return failed(err)
	}

	res := Result{Status: StatusMigrated, Imported: n, Dropped: dropped}
	if err := src.RemoveKey(ctx, TodosKey); err != nil {
		// Import upserts by id, so a retry on the next start is harmless.
		log.Warn().Err(err).Msg("removing legacy todo key failed")
		res.Error = err.Error()
	}

	log.Info().Int("imported", n).Int("dropped", dropped).Msg("legacy todos migrated")
	return res
}

func failed(err error) Result {
	return Result{Status: StatusFailed, Error: err.Error()}
}

// parseTodos accepts {state: {tasks: {repoPath: [task...]}}}. Entries that
// are not objects or have no title are dropped and counted.
func parseTodos(blob map[string]any) ([]todo.Task, int, error) {
	state, ok := blob["state"].(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("%w: state is %T", ErrMalformed, blob["state"])
	}
	raw, ok := state["tasks"]
	if !ok || raw == nil {
		return nil, 0, nil
	}
	byRepo, ok := raw.(map[string]any)
	if !ok {
		return nil, 0, fmt.Errorf("%w: tasks is %T", ErrMalformed, raw)
	}

	repos := make([]string, 0, len(byRepo))
	for repo := range byRepo {
		repos = append(repos, repo)
	}
	sort.Strings(repos)

	var (
		tasks   []todo.Task
		dropped int
	)
	for _, repo := range repos {
		list, ok := byRepo[repo].([]any)
		if !ok || strings.TrimSpace(repo) == "" {
			dropped++
			continue
		}
		for i, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				dropped++
				continue
			}
			t, ok := parseTask(repo, i, obj)
			if !ok {
				dropped++
				continue
			}
			tasks = append(tasks, t)
		}
	}
	renumber(tasks)
	return tasks, dropped, nil
}

// renumber makes the order dense within each repository column, keeping
// the relative order the old board had.
func renumber(tasks []todo.Task) {
	type column struct {
		repo   string
		status todo.Status
	}
	idx := make([]int, len(tasks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ta, tb := tasks[idx[a]], tasks[idx[b]]
		if ta.Order != tb.Order {
			return ta.Order < tb.Order
		}
		return ta.CreatedAt < tb.CreatedAt
	})
	next := map[column]int{}
	for _, i := range idx {
		c := column{tasks[i].RepoPath, tasks[i].Status}
		tasks[i].Order = next[c]
		next[c]++
	}
}

// parseTask reads the task at position pos of repo's list. A task without
// an id gets one derived from its place in the blob, so importing the same
// blob twice upserts instead of duplicating.
func parseTask(repo string, pos int, obj map[string]any) (todo.Task, bool) {
	title := strings.TrimSpace(sanitize.String(obj["title"], ""))
	if title == "" {
		return todo.Task{}, false
	}
	t := todo.Task{
		ID:          strings.TrimSpace(sanitize.String(obj["id"], "")),
		RepoPath:    repo,
		Title:       title,
		Description: sanitize.String(obj["description"], ""),
		Status:      legacyStatus(sanitize.String(obj["status"], "")),
		Priority:    todo.Priority(sanitize.Enum(obj["priority"], priorities, string(todo.PriorityMedium))),
		Order:       sanitize.ClampInt(obj["order"], 0, 1<<31-1, 0),
		CreatedAt:   int64(sanitize.ClampNumber(obj["createdAt"], 0, 1<<53, 0)),
		UpdatedAt:   int64(sanitize.ClampNumber(obj["updatedAt"], 0, 1<<53, 0)),
	}
	if t.ID == "" {
		t.ID = legacyID(repo, pos, title, t.CreatedAt)
	}
	return t, true
}

var legacyNamespace = uuid.NewSHA1(uuid.Nil, []byte(TodosKey))

func legacyID(repo string, pos int, title string, createdAt int64) string {
	name := strings.Join([]string{repo, strconv.Itoa(pos), title, strconv.FormatInt(createdAt, 10)}, "\x00")
	return uuid.NewSHA1(legacyNamespace, []byte(name)).String()
}

var priorities = []string{string(todo.PriorityLow), string(todo.PriorityMedium), string(todo.PriorityHigh)}

// legacyStatus maps the column names used by older boards.
func legacyStatus(s string) todo.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_progress", "in-progress", "inprogress", "doing":
		return todo.StatusInProgress
	case "in_review", "in-review", "inreview", "review":
		return todo.StatusInReview
	case "done", "completed":
		return todo.StatusDone
	default:
		return todo.StatusTodo
	}
}
