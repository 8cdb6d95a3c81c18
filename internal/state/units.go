package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/taskhunter/pkg/models"
)

const unitColumns = `u.id, u.task_id, u.description, u.sequence_order, u.status,
	u.estimated_minutes, u.actual_minutes, u.completed_at, u.metadata`

// QueuedUnit is a pending micro-unit together with the owning task fields
// that determine its place in the queue.
type QueuedUnit struct {
	models.MicroUnit
	TaskPriority int
	TaskContent  string
}

// CreateUnit inserts a micro-unit and sets its ID.
func CreateUnit(ctx context.Context, q Querier, u *models.MicroUnit) error {
	if u.Status == "" {
		u.Status = models.UnitStatusPending
	}

	meta, err := json.Marshal(u.Metadata)
	if err != nil {
		return fmt.Errorf("encode unit metadata: %w", err)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO micro_units (task_id, description, sequence_order, status, estimated_minutes, actual_minutes, completed_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.TaskID, u.Description, u.SequenceOrder, string(u.Status),
		nullableInt(u.EstimatedMinutes), nullableInt(u.ActualMinutes), nullableTime(u.CompletedAt), string(meta))
	if err != nil {
		return storeErr("create micro-unit", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeErr("get micro-unit id", err)
	}
	u.ID = id
	return nil
}

// GetUnit retrieves a micro-unit by ID. Returns nil, nil if it does not exist.
func GetUnit(ctx context.Context, q Querier, id int64) (*models.MicroUnit, error) {
	row := q.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM micro_units u WHERE u.id = ?`, id)

	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get micro-unit", err)
	}
	return u, nil
}

// UpdateUnit writes the mutable fields of a micro-unit back to the store.
func UpdateUnit(ctx context.Context, q Querier, u *models.MicroUnit) error {
	_, err := q.ExecContext(ctx, `
		UPDATE micro_units SET status = ?, actual_minutes = ?, completed_at = ? WHERE id = ?
	`, string(u.Status), nullableInt(u.ActualMinutes), nullableTime(u.CompletedAt), u.ID)
	if err != nil {
		return storeErr("update micro-unit", err)
	}
	return nil
}

// DeleteUnit removes a micro-unit; its executions go with it.
func DeleteUnit(ctx context.Context, q Querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM micro_units WHERE id = ?`, id); err != nil {
		return storeErr("delete micro-unit", err)
	}
	return nil
}

// ListUnits returns the micro-units of a task in sequence order.
func ListUnits(ctx context.Context, q Querier, taskID int64) ([]models.MicroUnit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+unitColumns+` FROM micro_units u
		WHERE u.task_id = ?
		ORDER BY u.sequence_order ASC, u.id ASC
	`, taskID)
	if err != nil {
		return nil, storeErr("list micro-units", err)
	}
	defer rows.Close()

	var units []models.MicroUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, storeErr("scan micro-unit", err)
		}
		units = append(units, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list micro-units", err)
	}
	return units, nil
}

// QueuedUnits returns pending micro-units whose task is pending or active,
// ordered by task priority descending, then sequence order ascending.
// The unit ID breaks any remaining tie. A limit <= 0 returns every unit.
func QueuedUnits(ctx context.Context, q Querier, limit int) ([]QueuedUnit, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+unitColumns+`, t.priority, t.content
		FROM micro_units u
		JOIN tasks t ON t.id = u.task_id
		WHERE u.status = 'pending' AND t.status IN ('pending', 'active')
		ORDER BY t.priority DESC, u.sequence_order ASC, u.id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, storeErr("list queued micro-units", err)
	}
	defer rows.Close()

	var queued []QueuedUnit
	for rows.Next() {
		var qu QueuedUnit
		u, err := scanUnit(rows, &qu.TaskPriority, &qu.TaskContent)
		if err != nil {
			return nil, storeErr("scan queued micro-unit", err)
		}
		qu.MicroUnit = *u
		queued = append(queued, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list queued micro-units", err)
	}
	return queued, nil
}

// CountPendingUnits returns how many units of a task are still pending.
func CountPendingUnits(ctx context.Context, q Querier, taskID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM micro_units WHERE task_id = ? AND status = 'pending'
	`, taskID).Scan(&n)
	if err != nil {
		return 0, storeErr("count pending micro-units", err)
	}
	return n, nil
}

// CountUnitsByStatus returns the number of micro-units in each status.
func CountUnitsByStatus(ctx context.Context, q Querier) (map[models.UnitStatus]int, error) {
	rows, err := q.QueryContext(ctx, `SELECT status, COUNT(*) FROM micro_units GROUP BY status`)
	if err != nil {
		return nil, storeErr("count micro-units", err)
	}
	defer rows.Close()

	counts := make(map[models.UnitStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("scan micro-unit count", err)
		}
		counts[models.UnitStatus(status)] = n
	}
	return counts, rows.Err()
}

func scanUnit(row rowScanner, extra ...any) (*models.MicroUnit, error) {
	var u models.MicroUnit
	var status, meta string
	var estimated, actual sql.NullInt64
	var completedAt sql.NullString

	dest := []any{&u.ID, &u.TaskID, &u.Description, &u.SequenceOrder, &status,
		&estimated, &actual, &completedAt, &meta}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	u.Status = models.UnitStatus(status)
	u.EstimatedMinutes = intPtr(estimated)
	u.ActualMinutes = intPtr(actual)
	u.CompletedAt = parseNullableTime(completedAt)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &u.Metadata); err != nil {
			return nil, fmt.Errorf("decode unit metadata: %w", err)
		}
	}
	return &u, nil
}

// Execution log

// CreateExecution appends an execution record and sets its ID.
func CreateExecution(ctx context.Context, q Querier, e *models.Execution) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	success := 0
	if e.Success {
		success = 1
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO executions (micro_unit_id, started_at, completed_at, success, notes)
		VALUES (?, ?, ?, ?, ?)
	`, e.MicroUnitID, formatTime(e.StartedAt), nullableTime(e.CompletedAt), success, sql.NullString{String: e.Notes, Valid: e.Notes != ""})
	if err != nil {
		return storeErr("create execution", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeErr("get execution id", err)
	}
	e.ID = id
	return nil
}

// ListExecutions returns the execution log for a micro-unit, oldest first.
func ListExecutions(ctx context.Context, q Querier, unitID int64) ([]models.Execution, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, micro_unit_id, started_at, completed_at, success, notes
		FROM executions WHERE micro_unit_id = ?
		ORDER BY id ASC
	`, unitID)
	if err != nil {
		return nil, storeErr("list executions", err)
	}
	defer rows.Close()

	var execs []models.Execution
	for rows.Next() {
		var e models.Execution
		var startedAt string
		var completedAt, notes sql.NullString
		if err := rows.Scan(&e.ID, &e.MicroUnitID, &startedAt, &completedAt, &e.Success, &notes); err != nil {
			return nil, storeErr("scan execution", err)
		}
		e.StartedAt, _ = parseTime(startedAt)
		e.CompletedAt = parseNullableTime(completedAt)
		e.Notes = notes.String
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list executions", err)
	}
	return execs, nil
}

// CountSuccessfulExecutionsSince counts successful executions completed at
// or after the given time.
func CountSuccessfulExecutionsSince(ctx context.Context, q Querier, since time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM executions WHERE success = 1 AND completed_at >= ?
	`, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, storeErr("count executions", err)
	}
	return n, nil
}

// CountRows returns the number of rows in each entity table.
func CountRows(ctx context.Context, q Querier) (tasks, units, executions int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM tasks), (SELECT COUNT(*) FROM micro_units), (SELECT COUNT(*) FROM executions)
	`).Scan(&tasks, &units, &executions)
	if err != nil {
		err = storeErr("count rows", err)
	}
	return
}
