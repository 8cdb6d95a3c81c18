package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/taskhunter/pkg/models"
)

const taskColumns = `id, content, status, priority, created_at, updated_at, metadata`

// CreateTask inserts a task and sets its ID and timestamps.
func CreateTask(ctx context.Context, q Querier, t *models.Task) error {
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt

	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode task metadata: %w", err)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO tasks (content, status, priority, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.Content, string(t.Status), t.Priority, formatTime(t.CreatedAt), formatTime(t.UpdatedAt), string(meta))
	if err != nil {
		return storeErr("create task", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeErr("get task id", err)
	}
	t.ID = id
	return nil
}

// GetTask retrieves a task by ID. Returns nil, nil if the task does not exist.
func GetTask(ctx context.Context, q Querier, id int64) (*models.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get task", err)
	}
	return t, nil
}

// SetTaskStatus updates a task's status and its updated_at timestamp.
func SetTaskStatus(ctx context.Context, q Querier, id int64, status models.TaskStatus) error {
	_, err := q.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now()), id)
	if err != nil {
		return storeErr("update task status", err)
	}
	return nil
}

// ListTasks lists tasks ordered by priority, optionally filtered by status.
func ListTasks(ctx context.Context, q Querier, statuses ...models.TaskStatus) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		query += fmt.Sprintf(` WHERE status IN (%s)`, strings.Join(placeholders, ", "))
	}
	query += ` ORDER BY priority DESC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("scan task", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

// CountTasksByStatus returns the number of tasks in each status.
func CountTasksByStatus(ctx context.Context, q Querier) (map[models.TaskStatus]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, storeErr("count tasks", err)
	}
	defer rows.Close()

	counts := make(map[models.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("scan task count", err)
		}
		counts[models.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

// DeleteAll removes every execution, micro-unit, and task, in that
// dependency order. Callers run it inside a transaction.
func DeleteAll(ctx context.Context, q Querier) error {
	for _, stmt := range []struct {
		op    string
		query string
	}{
		{"delete executions", `DELETE FROM executions`},
		{"delete micro-units", `DELETE FROM micro_units`},
		{"delete tasks", `DELETE FROM tasks`},
	} {
		if _, err := q.ExecContext(ctx, stmt.query); err != nil {
			return storeErr(stmt.op, err)
		}
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var status, createdAt, updatedAt, meta string
	if err := row.Scan(&t.ID, &t.Content, &status, &t.Priority, &createdAt, &updatedAt, &meta); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.CreatedAt, _ = parseTime(createdAt)
	t.UpdatedAt, _ = parseTime(updatedAt)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode task metadata: %w", err)
		}
	}
	return &t, nil
}
