package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contractguard/contractguard/core"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a durable core.TaskStore backed by SQLite. Structured task
// fields (input, steps, result) are stored as JSON columns; the revision
// column carries the optimistic lock.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialized writes avoid SQLITE_BUSY under concurrent transitions.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			state TEXT NOT NULL,
			input TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			steps TEXT,
			result TEXT,
			error TEXT,
			revision INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create implements core.TaskStore.
func (s *SQLiteStore) Create(ctx context.Context, task *core.Task) error {
	input, steps, result, err := marshalTask(task)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, session_id, state, input, progress, steps, result, error, revision, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.SessionID, string(task.State), input, task.Progress,
		steps, result, task.Error, task.Revision, task.Created, task.Updated)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Get implements core.TaskStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, session_id, state, input, progress, steps, result, error, revision, created_at, updated_at
		 FROM tasks WHERE task_id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// List implements core.TaskStore. Results are ordered newest first.
func (s *SQLiteStore) List(ctx context.Context, filter core.TaskFilter) ([]*core.Task, error) {
	query := `SELECT task_id, session_id, state, input, progress, steps, result, error, revision, created_at, updated_at
		 FROM tasks WHERE 1=1`
	var args []any
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Update implements core.TaskStore. The WHERE clause on revision makes the
// compare-and-swap atomic; zero rows affected means either a stale revision
// or a missing task, disambiguated with a follow-up lookup.
func (s *SQLiteStore) Update(ctx context.Context, task *core.Task, expected int64) error {
	input, steps, result, err := marshalTask(task)
	if err != nil {
		return err
	}
	updated := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, input = ?, progress = ?, steps = ?, result = ?, error = ?, revision = ?, updated_at = ?
		 WHERE task_id = ? AND revision = ?`,
		string(task.State), input, task.Progress, steps, result, task.Error,
		expected+1, updated, task.ID, expected)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, task.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("task %s, expected revision %d: %w", task.ID, expected, core.ErrConflict)
	}

	task.Revision = expected + 1
	task.Updated = updated
	return nil
}

// Delete implements core.TaskStore.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func marshalTask(task *core.Task) (input, steps, result string, err error) {
	in, err := json.Marshal(task.Input)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal input: %w", err)
	}
	st, err := json.Marshal(task.Steps)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal steps: %w", err)
	}
	var res []byte
	if task.Result != nil {
		if res, err = json.Marshal(task.Result); err != nil {
			return "", "", "", fmt.Errorf("failed to marshal result: %w", err)
		}
	}
	return string(in), string(st), string(res), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*core.Task, error) {
	var task core.Task
	var state, input string
	var steps, result, taskErr sql.NullString
	if err := row.Scan(&task.ID, &task.SessionID, &state, &input, &task.Progress,
		&steps, &result, &taskErr, &task.Revision, &task.Created, &task.Updated); err != nil {
		return nil, err
	}
	task.State = core.TaskState(state)
	if err := json.Unmarshal([]byte(input), &task.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if steps.Valid && steps.String != "" && steps.String != "null" {
		if err := json.Unmarshal([]byte(steps.String), &task.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}
	if result.Valid && result.String != "" {
		task.Result = &core.TaskResult{}
		if err := json.Unmarshal([]byte(result.String), task.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	if taskErr.Valid {
		task.Error = taskErr.String
	}
	return &task, nil
}
