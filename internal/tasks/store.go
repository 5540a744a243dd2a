// Package tasks keeps the user's to-do list in SQLite.
package tasks

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Task is one to-do entry. Done tasks stay in the table for history.
type Task struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Due       *time.Time `json:"due,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
}

// Done reports whether the task has been completed.
func (t Task) Done() bool { return t.DoneAt != nil }

// Store manages task persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a task store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewStoreWithDB creates a task store on an existing connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			due TEXT,
			created_at TEXT NOT NULL,
			done_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_done ON tasks(done_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create adds a task. due is optional.
func (s *Store) Create(title string, due *time.Time) (*Task, error) {
	t := &Task{
		ID:        uuid.New(),
		Title:     title,
		Due:       due,
		CreatedAt: time.Now().UTC(),
	}

	var dueStr any
	if due != nil {
		dueStr = due.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, title, due, created_at) VALUES (?, ?, ?, ?)
	`, t.ID.String(), t.Title, dueStr, t.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// Pending returns open tasks, soonest due first, dateless tasks last in
// creation order.
func (s *Store) Pending() ([]*Task, error) {
	rows, err := s.db.Query(`
		SELECT id, title, due, created_at, done_at
		FROM tasks
		WHERE done_at IS NULL
		ORDER BY due IS NULL, due, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var list []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Complete marks a task done by a title fragment. Exactly one open
// task must match; zero or several is an error so the model asks the
// user instead of guessing.
func (s *Store) Complete(titleFragment string) (*Task, error) {
	rows, err := s.db.Query(`
		SELECT id, title, due, created_at, done_at
		FROM tasks
		WHERE done_at IS NULL AND title LIKE ?
	`, "%"+titleFragment+"%")
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var matches []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no open task matches %q", titleFragment)
	case 1:
	default:
		return nil, fmt.Errorf("%d open tasks match %q, be more specific", len(matches), titleFragment)
	}

	now := time.Now().UTC()
	if _, err := s.db.Exec(`UPDATE tasks SET done_at = ? WHERE id = ?`,
		now.Format(time.RFC3339), matches[0].ID.String()); err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}
	matches[0].DoneAt = &now
	return matches[0], nil
}

func scanTask(rows *sql.Rows) (*Task, error) {
	var t Task
	var id string
	var due, doneAt sql.NullString
	var createdAt string

	if err := rows.Scan(&id, &t.Title, &due, &createdAt, &doneAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("task id %q: %w", id, err)
	}
	t.ID = parsed
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if due.Valid {
		if d, err := time.Parse(time.RFC3339, due.String); err == nil {
			t.Due = &d
		}
	}
	if doneAt.Valid {
		if d, err := time.Parse(time.RFC3339, doneAt.String); err == nil {
			t.DoneAt = &d
		}
	}
	return &t, nil
}
