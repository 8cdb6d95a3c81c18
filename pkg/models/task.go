package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates no micro-unit of the task has been started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusActive indicates a micro-unit of the task has been started.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusComplete indicates no pending micro-units remain.
	TaskStatusComplete TaskStatus = "complete"
	// TaskStatusArchived indicates the task was shelved and is no longer scheduled.
	TaskStatusArchived TaskStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusActive, TaskStatusComplete, TaskStatusArchived:
		return true
	default:
		return false
	}
}

// Schedulable reports whether units of a task in this status may be served.
func (s TaskStatus) Schedulable() bool {
	return s == TaskStatusPending || s == TaskStatusActive
}

// UnitStatus represents the current state of a micro-unit.
type UnitStatus string

const (
	// UnitStatusPending indicates the unit is waiting to be worked.
	UnitStatusPending UnitStatus = "pending"
	// UnitStatusActive indicates the unit has been started.
	UnitStatusActive UnitStatus = "active"
	// UnitStatusComplete indicates the unit was processed.
	UnitStatusComplete UnitStatus = "complete"
	// UnitStatusSkipped indicates the unit was dropped without being worked.
	UnitStatusSkipped UnitStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitStatusPending, UnitStatusActive, UnitStatusComplete, UnitStatusSkipped:
		return true
	default:
		return false
	}
}

// TaskMetadata holds the oracle-provided hints attached to a task.
type TaskMetadata struct {
	Category            string `json:"category,omitempty" yaml:"category,omitempty"`
	EstimatedComplexity string `json:"estimated_complexity,omitempty" yaml:"estimated_complexity,omitempty"`
	PriorityHints       string `json:"priority_hints,omitempty" yaml:"priority_hints,omitempty"`
	// DumpID identifies the dump-processing cycle that created the task.
	DumpID string `json:"dump_id,omitempty" yaml:"dump_id,omitempty"`
}

// Task is a discrete unit of intended work derived from a dump.
type Task struct {
	// ID is the unique identifier for this task.
	ID int64 `json:"id" yaml:"id"`
	// Content is the free-text description of the task.
	Content string `json:"content" yaml:"content"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status"`
	// Priority is 1-100, higher is more urgent. Fixed once computed.
	Priority int `json:"priority" yaml:"priority"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// UpdatedAt is when the task last changed status.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	// Metadata carries category and complexity hints.
	Metadata TaskMetadata `json:"metadata" yaml:"metadata"`
}

// UnitMetadata holds the oracle-provided hints attached to a micro-unit.
type UnitMetadata struct {
	BinaryCheck  string   `json:"binary_check,omitempty" yaml:"binary_check,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// MicroUnit is an atomic, independently completable sub-step of a Task.
type MicroUnit struct {
	// ID is the unique identifier for this unit.
	ID int64 `json:"id" yaml:"id"`
	// TaskID references the owning task.
	TaskID int64 `json:"task_id" yaml:"task_id"`
	// Description is the actionable text of the unit.
	Description string `json:"description" yaml:"description"`
	// SequenceOrder defines intra-task ordering.
	SequenceOrder int `json:"sequence_order" yaml:"sequence_order"`
	// Status is the current state of the unit.
	Status UnitStatus `json:"status" yaml:"status"`
	// EstimatedMinutes is the oracle's estimate, if any.
	EstimatedMinutes *int `json:"estimated_minutes,omitempty" yaml:"estimated_minutes,omitempty"`
	// ActualMinutes is reported on completion, if any.
	ActualMinutes *int `json:"actual_minutes,omitempty" yaml:"actual_minutes,omitempty"`
	// CompletedAt is when the unit was completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	// Metadata carries the completion check and dependency hints.
	Metadata UnitMetadata `json:"metadata" yaml:"metadata"`
}

// Execution is an append-only record of an attempt at a MicroUnit.
type Execution struct {
	ID          int64      `json:"id" yaml:"id"`
	MicroUnitID int64      `json:"micro_unit_id" yaml:"micro_unit_id"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Success     bool       `json:"success" yaml:"success"`
	Notes       string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}
