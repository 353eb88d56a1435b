package db

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create kv store",
		SQL: `
			CREATE TABLE kv_store (
				key         TEXT PRIMARY KEY,
				value       TEXT NOT NULL,
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 2,
		Name:    "create todo tasks",
		SQL: `
			CREATE TABLE todo_tasks (
				id           TEXT PRIMARY KEY,
				repo_path    TEXT NOT NULL,
				title        TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				status       TEXT NOT NULL DEFAULT 'todo',
				priority     TEXT NOT NULL DEFAULT 'medium',
				sort_order   INTEGER NOT NULL DEFAULT 0,
				created_at   INTEGER NOT NULL,
				updated_at   INTEGER NOT NULL
			);

			CREATE INDEX idx_todo_repo_status ON todo_tasks (repo_path, status, sort_order);
		`,
	},
}
