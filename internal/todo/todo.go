// Package todo persists per-repository kanban tasks in SQLite. Tasks live
// in one column per status and keep a dense zero-based order inside it.
package todo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/enso/internal/db"
	"github.com/soyeahso/enso/internal/logging"
)

var (
	ErrNotFound = errors.New("todo: task not found")
	ErrInvalid  = errors.New("todo: invalid task")
)

// Status is the kanban column a task sits in.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
)

// Statuses lists the columns in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// Priority is a task priority.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool { return slices.Contains(Priorities, p) }

// Task is one kanban card. Timestamps are unix milliseconds.
type Task struct {
	ID          string   `json:"id"`
	RepoPath    string   `json:"repoPath"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Order       int      `json:"order"`
	CreatedAt   int64    `json:"createdAt"`
	UpdatedAt   int64    `json:"updatedAt"`
}

// NewTask holds the caller-supplied fields of a task being created.
// Empty status and priority default to todo and medium.
type NewTask struct {
	RepoPath    string
	Title       string
	Description string
	Status      Status
	Priority    Priority
}

// Patch changes the editable text fields of a task. Nil fields are kept.
type Patch struct {
	Title       *string
	Description *string
	Priority    *Priority
}

// Service is the task store.
type Service struct {
	db  *db.DB
	log *logging.Logger
	now func() time.Time
}

// NewService creates a task store on an open database.
func NewService(database *db.DB, log *logging.Logger) *Service {
	return &Service{db: database, log: log.Sub("todo"), now: time.Now}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectColumns = `SELECT id, repo_path, title, description, status, priority, sort_order, created_at, updated_at FROM todo_tasks`

// Create adds a task at the end of its column.
func (s *Service) Create(ctx context.Context, in NewTask) (Task, error) {
	t := Task{
		ID:          uuid.New().String(),
		RepoPath:    strings.TrimSpace(in.RepoPath),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if err := validate(t); err != nil {
		return Task{}, err
	}
	t.CreatedAt = s.now().UnixMilli()
	t.UpdatedAt = t.CreatedAt

	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM todo_tasks WHERE repo_path = ? AND status = ?`,
			t.RepoPath, t.Status,
		).Scan(&t.Order)
		if err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		return insert(ctx, tx, t)
	})
	if err != nil {
		return Task{}, fmt.Errorf("creating task: %w", err)
	}

	s.log.Debug().Str("id", t.ID).Str("repo", t.RepoPath).Msg("task created")
	return t, nil
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id string) (Task, error) {
	return get(ctx, s.db.SQL(), id)
}

// List returns the tasks of a repository in board order: by column, then
// by order within the column.
func (s *Service) List(ctx context.Context, repoPath string) ([]Task, error) {
	rows, err := s.db.SQL().QueryContext(ctx, selectColumns+`
		WHERE repo_path = ?
		ORDER BY CASE status
			WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 WHEN 'in_review' THEN 2 WHEN 'done' THEN 3 ELSE 4
		END, sort_order, created_at`, repoPath)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("listing tasks: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Repos returns every repository path that has tasks, sorted.
func (s *Service) Repos(ctx context.Context) ([]string, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `SELECT DISTINCT repo_path FROM todo_tasks ORDER BY repo_path`)
	if err != nil {
		return nil, fmt.Errorf("listing repos: %w", err)
	}
	defer rows.Close()

	var repos []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("listing repos: %w", err)
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// Update applies a patch to a task's text fields.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Task, error) {
	var out Task
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		t, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Title != nil {
			t.Title = strings.TrimSpace(*p.Title)
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.Priority != nil {
			t.Priority = *p.Priority
		}
		if err := validate(t); err != nil {
			return err
		}
		t.UpdatedAt = s.now().UnixMilli()

		_, err = tx.ExecContext(ctx,
			`UPDATE todo_tasks SET title = ?, description = ?, priority = ?, updated_at = ? WHERE id = ?`,
			t.Title, t.Description, t.Priority, t.UpdatedAt, t.ID,
		)
		if err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		out = t
		return nil
	})
	return out, err
}

// Move places a task at index within the status column, shifting the
// other tasks of that column. An index past the end appends. The source
// column is renumbered when the status changes.
func (s *Service) Move(ctx context.Context, id string, status Status, index int) (Task, error) {
	if !status.Valid() {
		return Task{}, fmt.Errorf("%w: status %q", ErrInvalid, status)
	}

	var out Task
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		t, err := get(ctx, tx, id)
		if err != nil {
			return err
		}

		column, err := columnIDs(ctx, tx, t.RepoPath, status, t.ID)
		if err != nil {
			return err
		}
		index = max(0, min(index, len(column)))
		column = slices.Insert(column, index, t.ID)

		t.UpdatedAt = s.now().UnixMilli()
		if _, err := tx.ExecContext(ctx,
			`UPDATE todo_tasks SET status = ?, updated_at = ? WHERE id = ?`,
			status, t.UpdatedAt, t.ID,
		); err != nil {
			return fmt.Errorf("moving task: %w", err)
		}
		if err := renumber(ctx, tx, column); err != nil {
			return err
		}

		if t.Status != status {
			source, err := columnIDs(ctx, tx, t.RepoPath, t.Status, t.ID)
			if err != nil {
				return err
			}
			if err := renumber(ctx, tx, source); err != nil {
				return err
			}
		}

		t.Status = status
		t.Order = index
		out = t
		return nil
	})
	if err != nil {
		return Task{}, err
	}

	s.log.Debug().Str("id", id).Str("status", string(status)).Int("index", out.Order).Msg("task moved")
	return out, nil
}

// Delete removes a task and closes the gap in its column.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		t, err := get(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM todo_tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		rest, err := columnIDs(ctx, tx, t.RepoPath, t.Status, "")
		if err != nil {
			return err
		}
		return renumber(ctx, tx, rest)
	})
}

// Import writes tasks in a single transaction, replacing tasks with the
// same id. Missing ids, statuses, priorities and timestamps are filled in.
// Any invalid task aborts the whole import.
func (s *Service) Import(ctx context.Context, tasks []Task) (int, error) {
	now := s.now().UnixMilli()
	prepared := make([]Task, 0, len(tasks))
	for i, t := range tasks {
		t.RepoPath = strings.TrimSpace(t.RepoPath)
		t.Title = strings.TrimSpace(t.Title)
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.Status == "" {
			t.Status = StatusTodo
		}
		if t.Priority == "" {
			t.Priority = PriorityMedium
		}
		if t.CreatedAt <= 0 {
			t.CreatedAt = now
		}
		if t.UpdatedAt <= 0 {
			t.UpdatedAt = t.CreatedAt
		}
		if err := validate(t); err != nil {
			return 0, fmt.Errorf("task %d: %w", i, err)
		}
		prepared = append(prepared, t)
	}

	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		for _, t := range prepared {
			if err := upsert(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("importing tasks: %w", err)
	}

	s.log.Info().Int("count", len(prepared)).Msg("tasks imported")
	return len(prepared), nil
}

func validate(t Task) error {
	switch {
	case t.RepoPath == "":
		return fmt.Errorf("%w: repo path is required", ErrInvalid)
	case t.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case !t.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalid, t.Status)
	case !t.Priority.Valid():
		return fmt.Errorf("%w: priority %q", ErrInvalid, t.Priority)
	}
	return nil
}

func get(ctx context.Context, q querier, id string) (Task, error) {
	t, err := scan(q.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Task{}, fmt.Errorf("loading task %s: %w", id, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Task, error) {
	var t Task
	err := r.Scan(&t.ID, &t.RepoPath, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.Order, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func insert(ctx context.Context, q querier, t Task) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO todo_tasks (id, repo_path, title, description, status, priority, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RepoPath, t.Title, t.Description, t.Status, t.Priority, t.Order, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting task %s: %w", t.ID, err)
	}
	return nil
}

func upsert(ctx context.Context, q querier, t Task) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO todo_tasks (id, repo_path, title, description, status, priority, sort_order, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			repo_path = excluded.repo_path,
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			sort_order = excluded.sort_order,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		t.ID, t.RepoPath, t.Title, t.Description, t.Status, t.Priority, t.Order, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("writing task %s: %w", t.ID, err)
	}
	return nil
}

// columnIDs returns the ids of a column in order, leaving out exclude.
func columnIDs(ctx context.Context, q querier, repoPath string, status Status, exclude string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM todo_tasks WHERE repo_path = ? AND status = ? AND id != ? ORDER BY sort_order, created_at`,
		repoPath, status, exclude,
	)
	if err != nil {
		return nil, fmt.Errorf("loading column %s: %w", status, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("loading column %s: %w", status, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func renumber(ctx context.Context, q querier, ids []string) error {
	for i, id := range ids {
		if _, err := q.ExecContext(ctx, `UPDATE todo_tasks SET sort_order = ? WHERE id = ?`, i, id); err != nil {
			return fmt.Errorf("renumbering task %s: %w", id, err)
		}
	}
	return nil
}
