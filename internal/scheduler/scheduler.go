// Package scheduler serves micro-units one at a time in priority order and
// owns every status transition of units and their tasks.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/ShayCichocki/taskhunter/internal/state"
	"github.com/ShayCichocki/taskhunter/pkg/models"
)

const (
	// DuplicateThreshold is the minimum relevance for a duplicate match.
	DuplicateThreshold = 0.1
	// MaxDuplicates caps the matches FindDuplicates returns.
	MaxDuplicates = 5

	// duplicatePool is how many full-text hits are scored for relevance.
	duplicatePool = 50
)

// Scheduler selects and transitions micro-units against the task store.
type Scheduler struct {
	db    *state.DB
	costs *CostMeter
}

// New creates a Scheduler over an opened, migrated database.
func New(db *state.DB) *Scheduler {
	return &Scheduler{db: db, costs: &CostMeter{}}
}

// Costs returns the oracle spend accumulated by this scheduler's processors.
func (s *Scheduler) Costs() *CostMeter {
	return s.costs
}

// CompleteOptions describe the outcome recorded with a completion.
type CompleteOptions struct {
	// Success is logged on the execution only; the unit completes either way.
	Success       bool
	ActualMinutes *int
	Notes         string
}

// Transition reports the effect of a unit status change.
type Transition struct {
	Unit models.MicroUnit
	// Execution is the record appended by a completion, nil otherwise.
	Execution *models.Execution
	// Remaining is the number of pending units left in the task.
	Remaining int
	// TaskCompleted is true when this transition cascaded the task to complete.
	TaskCompleted bool
}

// Duplicate is an existing task that resembles a candidate.
type Duplicate struct {
	Task models.Task
	// Relevance is the share of the candidate's terms found in the task.
	Relevance float64
}

// Summary is a snapshot of the store and the session's oracle spend.
type Summary struct {
	Tasks          map[models.TaskStatus]int
	Units          map[models.UnitStatus]int
	CompletedToday int
	OracleCost     float64
	SynthesisCost  float64
}

// SelectNext returns the highest-priority, earliest-sequence pending unit
// whose task is pending or active, or nil if there is none. It never
// changes any status.
func (s *Scheduler) SelectNext(ctx context.Context) (*models.MicroUnit, error) {
	queued, err := s.ListPending(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}
	return &queued[0].MicroUnit, nil
}

// ListPending returns up to limit queued units in SelectNext order.
// A limit <= 0 returns all of them.
func (s *Scheduler) ListPending(ctx context.Context, limit int) ([]state.QueuedUnit, error) {
	var queued []state.QueuedUnit
	err := s.db.View(ctx, func(q state.Querier) error {
		var err error
		queued, err = state.QueuedUnits(ctx, q, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list pending units: %w", err)
	}
	return queued, nil
}

// Start marks a pending unit and its task active in one transaction.
func (s *Scheduler) Start(ctx context.Context, unitID int64) error {
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		u, err := state.GetUnit(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("unit %d: %w", unitID, ErrNotFound)
		}
		if u.Status != models.UnitStatusPending || !models.CanTransitionUnit(u.Status, models.UnitStatusActive) {
			return fmt.Errorf("unit %d is %s: %w", unitID, u.Status, ErrInvalidState)
		}

		task, err := state.GetTask(ctx, tx, u.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %d of unit %d: %w", u.TaskID, unitID, ErrNotFound)
		}
		if !models.CanTransitionTask(task.Status, models.TaskStatusActive) {
			return fmt.Errorf("task %d is %s: %w", task.ID, task.Status, ErrInvalidState)
		}

		u.Status = models.UnitStatusActive
		if err := state.UpdateUnit(ctx, tx, u); err != nil {
			return err
		}
		if err := state.SetTaskStatus(ctx, tx, task.ID, models.TaskStatusActive); err != nil {
			return err
		}

		log.Printf("[scheduler] started unit id=%d content=%q", u.ID, models.Preview(u.Description))
		return nil
	})
	if err != nil {
		return fmt.Errorf("start unit: %w", err)
	}
	return nil
}

// Complete marks a unit complete, appends an execution, and cascades the
// task to complete when no pending units remain, all in one transaction.
// Repeated calls append further executions.
func (s *Scheduler) Complete(ctx context.Context, unitID int64, opts CompleteOptions) (*Transition, error) {
	var tr *Transition
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var err error
		tr, err = applyCompletion(ctx, tx, unitID, models.UnitStatusComplete, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete unit: %w", err)
	}
	return tr, nil
}

// Skip marks a unit skipped. Skipped units no longer count as pending, so
// skipping the last one cascades the task like a completion.
func (s *Scheduler) Skip(ctx context.Context, unitID int64) (*Transition, error) {
	var tr *Transition
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var err error
		tr, err = applyCompletion(ctx, tx, unitID, models.UnitStatusSkipped, CompleteOptions{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("skip unit: %w", err)
	}
	return tr, nil
}

// applyCompletion moves a unit to a terminal status and applies the cascade.
// It is the only place a unit leaves the queue, which keeps "a task is
// complete iff it has no pending units" true after every transition.
func applyCompletion(ctx context.Context, tx *sql.Tx, unitID int64, to models.UnitStatus, opts CompleteOptions) (*Transition, error) {
	u, err := state.GetUnit(ctx, tx, unitID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("unit %d: %w", unitID, ErrNotFound)
	}
	if !models.CanTransitionUnit(u.Status, to) {
		return nil, fmt.Errorf("unit %d is %s, cannot become %s: %w", unitID, u.Status, to, ErrInvalidState)
	}

	now := time.Now()
	u.Status = to
	tr := &Transition{}

	if to == models.UnitStatusComplete {
		if opts.ActualMinutes != nil {
			u.ActualMinutes = opts.ActualMinutes
		}
		u.CompletedAt = &now

		exec := &models.Execution{
			MicroUnitID: u.ID,
			StartedAt:   now,
			CompletedAt: &now,
			Success:     opts.Success,
			Notes:       opts.Notes,
		}
		if err := state.CreateExecution(ctx, tx, exec); err != nil {
			return nil, err
		}
		tr.Execution = exec
	}

	if err := state.UpdateUnit(ctx, tx, u); err != nil {
		return nil, err
	}
	tr.Unit = *u

	tr.Remaining, tr.TaskCompleted, err = cascade(ctx, tx, u.TaskID)
	if err != nil {
		return nil, err
	}

	log.Printf("[scheduler] unit %s id=%d content=%q remaining=%d", to, u.ID, models.Preview(u.Description), tr.Remaining)
	return tr, nil
}

// cascade completes a task that has no pending units left. Archived tasks
// are left alone.
func cascade(ctx context.Context, tx *sql.Tx, taskID int64) (remaining int, completed bool, err error) {
	remaining, err = state.CountPendingUnits(ctx, tx, taskID)
	if err != nil {
		return 0, false, err
	}
	if remaining > 0 {
		return remaining, false, nil
	}

	task, err := state.GetTask(ctx, tx, taskID)
	if err != nil {
		return 0, false, err
	}
	if task == nil {
		return 0, false, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	if task.Status == models.TaskStatusComplete || !models.CanTransitionTask(task.Status, models.TaskStatusComplete) {
		return 0, false, nil
	}

	if err := state.SetTaskStatus(ctx, tx, taskID, models.TaskStatusComplete); err != nil {
		return 0, false, err
	}
	log.Printf("[scheduler] task complete id=%d content=%q", task.ID, models.Preview(task.Content))
	return 0, true, nil
}

// DeleteUnit removes a unit and its executions, then applies the cascade to
// its task.
func (s *Scheduler) DeleteUnit(ctx context.Context, unitID int64) (*Transition, error) {
	var tr *Transition
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		u, err := state.GetUnit(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("unit %d: %w", unitID, ErrNotFound)
		}
		if err := state.DeleteUnit(ctx, tx, unitID); err != nil {
			return err
		}

		tr = &Transition{Unit: *u}
		tr.Remaining, tr.TaskCompleted, err = cascade(ctx, tx, u.TaskID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete unit: %w", err)
	}
	log.Printf("[scheduler] deleted unit id=%d content=%q", tr.Unit.ID, models.Preview(tr.Unit.Description))
	return tr, nil
}

// Archive shelves a task so none of its units are served.
func (s *Scheduler) Archive(ctx context.Context, taskID int64) error {
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		task, err := state.GetTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		if !models.CanTransitionTask(task.Status, models.TaskStatusArchived) {
			return fmt.Errorf("task %d is %s: %w", taskID, task.Status, ErrInvalidState)
		}
		return state.SetTaskStatus(ctx, tx, taskID, models.TaskStatusArchived)
	})
	if err != nil {
		return fmt.Errorf("archive task: %w", err)
	}
	return nil
}

// Clear deletes every execution, unit, and task in one transaction.
func (s *Scheduler) Clear(ctx context.Context) error {
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		return state.DeleteAll(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	log.Printf("[scheduler] cleared all tasks")
	return nil
}

// FindDuplicates returns pending or active tasks that resemble text, most
// relevant first. The result is advisory and never blocks task creation.
func (s *Scheduler) FindDuplicates(ctx context.Context, text string) ([]Duplicate, error) {
	var hits []state.SearchHit
	err := s.db.View(ctx, func(q state.Querier) error {
		var err error
		hits, err = state.SearchTasks(ctx, q, text,
			[]models.TaskStatus{models.TaskStatusPending, models.TaskStatusActive}, duplicatePool)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}

	type scored struct {
		Duplicate
		rank float64
	}
	var matches []scored
	for _, hit := range hits {
		rel := Relevance(text, hit.Task.Content)
		if rel <= DuplicateThreshold {
			continue
		}
		matches = append(matches, scored{Duplicate{Task: hit.Task, Relevance: rel}, hit.Rank})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Relevance != matches[j].Relevance {
			return matches[i].Relevance > matches[j].Relevance
		}
		return matches[i].rank < matches[j].rank
	})
	if len(matches) > MaxDuplicates {
		matches = matches[:MaxDuplicates]
	}

	dups := make([]Duplicate, len(matches))
	for i, m := range matches {
		dups[i] = m.Duplicate
	}
	return dups, nil
}

// Relevance is the fraction of distinct terms of candidate that also occur
// in content, in [0, 1].
func Relevance(candidate, content string) float64 {
	want := make(map[string]bool)
	for _, t := range state.Terms(candidate) {
		want[t] = true
	}
	if len(want) == 0 {
		return 0
	}

	have := make(map[string]bool)
	for _, t := range state.Terms(content) {
		have[t] = true
	}

	shared := 0
	for t := range want {
		if have[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(want))
}

// Summary counts tasks and units by status and today's successful
// executions, and reports the session's oracle spend.
func (s *Scheduler) Summary(ctx context.Context) (*Summary, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	sum := &Summary{}
	err := s.db.View(ctx, func(q state.Querier) error {
		var err error
		if sum.Tasks, err = state.CountTasksByStatus(ctx, q); err != nil {
			return err
		}
		if sum.Units, err = state.CountUnitsByStatus(ctx, q); err != nil {
			return err
		}
		sum.CompletedToday, err = state.CountSuccessfulExecutionsSince(ctx, q, midnight)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("summarize tasks: %w", err)
	}
	sum.OracleCost, sum.SynthesisCost = s.costs.Totals()
	return sum, nil
}

// Tree returns every task with its units, ordered by priority. It backs
// exports.
func (s *Scheduler) Tree(ctx context.Context) ([]TaskTree, error) {
	var tree []TaskTree
	err := s.db.View(ctx, func(q state.Querier) error {
		tasks, err := state.ListTasks(ctx, q)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			units, err := state.ListUnits(ctx, q, t.ID)
			if err != nil {
				return err
			}
			tree = append(tree, TaskTree{Task: t, Units: units})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load task tree: %w", err)
	}
	return tree, nil
}

// History returns the execution log of a unit, oldest first.
func (s *Scheduler) History(ctx context.Context, unitID int64) (*models.MicroUnit, []models.Execution, error) {
	var unit *models.MicroUnit
	var execs []models.Execution
	err := s.db.View(ctx, func(q state.Querier) error {
		var err error
		if unit, err = state.GetUnit(ctx, q, unitID); err != nil {
			return err
		}
		if unit == nil {
			return fmt.Errorf("unit %d: %w", unitID, ErrNotFound)
		}
		execs, err = state.ListExecutions(ctx, q, unitID)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return unit, execs, nil
}

// TaskTree is a task together with its units in sequence order.
type TaskTree struct {
	models.Task `yaml:",inline"`
	Units       []models.MicroUnit `yaml:"units"`
}
