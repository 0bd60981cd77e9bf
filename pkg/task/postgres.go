package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the postgres store needs. Using the
// interface keeps the store testable against a single connection.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists tasks in the tasks table. It never evicts;
// retention is an external policy. Timestamps are stored in UTC.
type PostgresStore struct {
	db  DBTX
	now func() time.Time
}

// NewPostgresStore creates a postgres-backed store on the given connection pool.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

const taskColumns = `id, extract(epoch from created), extract(epoch from updated), images, status, app, author, project`

// scanTaskRows scans history rows into Task values.
func scanTaskRows(rows pgx.Rows) ([]Task, error) {
	defer rows.Close()
	tasks := make([]Task, 0)
	for rows.Next() {
		var (
			t       Task
			updated *float64
			images  []byte
		)
		if err := rows.Scan(&t.ID, &t.Created, &updated, &images, &t.Status, &t.App, &t.Author, &t.Project); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		if updated != nil {
			t.Updated = *updated
		}
		if err := json.Unmarshal(images, &t.Images); err != nil {
			return nil, fmt.Errorf("decoding task images: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return tasks, nil
}

// SetCurrentTask stamps Created and inserts the task with the given status.
func (s *PostgresStore) SetCurrentTask(ctx context.Context, t *Task, status string) error {
	now := s.now().UTC()
	t.Status = status
	t.Created = epoch(now)

	images, err := json.Marshal(t.Images)
	if err != nil {
		return fmt.Errorf("encoding task images: %w", err)
	}

	query := `INSERT INTO tasks (id, created, images, status, app, author, project)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.db.Exec(ctx, query,
		t.ID, now, images, t.Status, t.App, t.Author, t.Project,
	); err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// GetTaskStatus returns the stored status, or the task-not-found sentinel
// for unknown ids.
func (s *PostgresStore) GetTaskStatus(ctx context.Context, id string) (string, error) {
	var status string
	err := s.db.QueryRow(ctx, `SELECT status FROM tasks WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return StatusTaskNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("querying task status: %w", err)
	}
	return status, nil
}

// UpdateTask stamps Updated and overwrites the status. Missing ids are a no-op.
func (s *PostgresStore) UpdateTask(ctx context.Context, id, status string) error {
	query := `UPDATE tasks SET status = $2, updated = $3 WHERE id = $1`
	if _, err := s.db.Exec(ctx, query, id, status, s.now().UTC()); err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

// GetState returns tasks created within the filter range, oldest first.
func (s *PostgresStore) GetState(ctx context.Context, f HistoryFilter) ([]Task, error) {
	to := f.To
	if to == 0 {
		to = epoch(s.now())
	}

	query := `SELECT ` + taskColumns + ` FROM tasks
	WHERE created >= $1 AND created <= $2`
	args := []any{
		time.Unix(0, int64(f.From*float64(time.Second))).UTC(),
		time.Unix(0, int64(to*float64(time.Second))).UTC(),
	}

	if f.App != "" {
		query += ` AND app = $3`
		args = append(args, f.App)
	}
	query += ` ORDER BY created ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	return scanTaskRows(rows)
}

// GetAppList returns the distinct app names present in the table, sorted.
func (s *PostgresStore) GetAppList(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT app FROM tasks ORDER BY app ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying app list: %w", err)
	}
	defer rows.Close()

	apps := make([]string, 0)
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, fmt.Errorf("scanning app name: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating app names: %w", err)
	}
	return apps, nil
}

// Check verifies database connectivity with a trivial query.
func (s *PostgresStore) Check(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}
