// internal/storage/postgres/client.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	due_date         TIMESTAMPTZ,
	scheduled_time   TIMESTAMPTZ,
	assigned_user_id BIGINT NOT NULL DEFAULT 0,
	task_type        TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	completed        BOOLEAN NOT NULL DEFAULT FALSE,
	dependencies     TEXT[] NOT NULL DEFAULT '{}',
	result           JSONB,
	last_error       TEXT NOT NULL DEFAULT '',
	version          BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks (due_date) WHERE NOT completed;

CREATE TABLE IF NOT EXISTS task_results (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_results_task_id ON task_results (task_id, created_at);
`

const taskColumns = `id, title, description, due_date, scheduled_time, assigned_user_id, task_type,
	status, completed, dependencies, result, last_error, version, created_at, updated_at`

type Client struct {
	db    *sql.DB
	codec storage.Codec
}

func NewClient(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Client{db: db, codec: storage.JSONCodec{}}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Migrate creates the tables if they do not exist
func (c *Client) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (c *Client) scanTask(row rowScanner) (*models.Task, error) {
	var (
		task          models.Task
		status        string
		dueDate       sql.NullTime
		scheduledTime sql.NullTime
		deps          pq.StringArray
		resultJSON    []byte
	)

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&dueDate,
		&scheduledTime,
		&task.AssignedUserID,
		&task.TaskType,
		&status,
		&task.Completed,
		&deps,
		&resultJSON,
		&task.LastError,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskStatus(status)
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if scheduledTime.Valid {
		task.ScheduledTime = &scheduledTime.Time
	}
	task.Dependencies = append(make([]string, 0, len(deps)), deps...)

	if len(resultJSON) > 0 {
		var result models.TaskResult
		if err := c.codec.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		task.Result = &result
	}

	return &task, nil
}

func (c *Client) FindByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := c.scanTask(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", storage.ErrTaskNotFound, id)
		}
		return nil, err
	}
	return task, nil
}

func (c *Client) queryTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := c.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (c *Client) FindAll(ctx context.Context) ([]*models.Task, error) {
	return c.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`)
}

func (c *Client) FindOverdue(ctx context.Context, now time.Time) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE NOT completed AND due_date IS NOT NULL AND due_date < $1
		ORDER BY due_date`
	return c.queryTasks(ctx, query, now)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (c *Client) Save(ctx context.Context, task *models.Task) (*models.Task, error) {
	stored := task.Clone()
	stored.Version = task.Version + 1

	// JSONB goes over the wire as text; a []byte would be sent as bytea
	var resultJSON any
	if stored.Result != nil {
		data, err := c.codec.Marshal(stored.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = string(data)
	}

	args := []any{
		stored.ID,
		stored.Title,
		stored.Description,
		nullTime(stored.DueDate),
		nullTime(stored.ScheduledTime),
		stored.AssignedUserID,
		stored.TaskType,
		string(stored.Status),
		stored.Completed,
		pq.Array(stored.Dependencies),
		resultJSON,
		stored.LastError,
		stored.Version,
		stored.CreatedAt,
		stored.UpdatedAt,
	}

	if task.Version == 0 {
		query := `
			INSERT INTO tasks (` + taskColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (id) DO NOTHING`

		result, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to insert task: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			return nil, fmt.Errorf("%w: %s already exists", storage.ErrVersionConflict, task.ID)
		}
		return stored, nil
	}

	query := `
		UPDATE tasks
		SET title = $2, description = $3, due_date = $4, scheduled_time = $5,
			assigned_user_id = $6, task_type = $7, status = $8, completed = $9,
			dependencies = $10, result = $11, last_error = $12, version = $13,
			created_at = $14, updated_at = $15
		WHERE id = $1 AND version = $16`

	result, err := c.db.ExecContext(ctx, query, append(args, task.Version)...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := c.FindByID(ctx, task.ID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", storage.ErrVersionConflict, task.ID)
	}

	return stored, nil
}

func (c *Client) SaveResult(ctx context.Context, result *models.TaskResult) error {
	query := `
		INSERT INTO task_results (id, task_id, title, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	_, err := c.db.ExecContext(ctx, query, result.ID, result.TaskID, result.Title, result.Content, result.Timestamp)
	return err
}

func (c *Client) FindResultsByTaskID(ctx context.Context, taskID string) ([]*models.TaskResult, error) {
	query := `
		SELECT id, task_id, title, content, created_at
		FROM task_results
		WHERE task_id = $1
		ORDER BY created_at`

	rows, err := c.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*models.TaskResult, 0)
	for rows.Next() {
		var r models.TaskResult
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Title, &r.Content, &r.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}
