package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ShayCichocki/taskhunter/internal/decompose"
	"github.com/ShayCichocki/taskhunter/internal/state"
	"github.com/ShayCichocki/taskhunter/pkg/models"
)

// DumpProcessor turns a dump into persisted tasks.
type DumpProcessor interface {
	Process(ctx context.Context, dump string) (*DumpResult, error)
}

// DumpResult aggregates one dump-processing cycle.
type DumpResult struct {
	DumpID          string
	NewTasks        int
	TotalMicroUnits int
	Tasks           []TaskSummary
	// Cost is the oracle spend of this call; zero for a cache hit.
	Cost   float64
	Cached bool
}

// TaskSummary describes one task created from a dump.
type TaskSummary struct {
	TaskID     int64
	Preview    string
	MicroUnits int
	Priority   int
	// Duplicates lists similar pending or active tasks found before creation.
	Duplicates []int64
}

// Processor runs the dump pipeline: parse, then for each candidate check
// duplicates, score, decompose, and persist.
//
// Each candidate is committed in its own transaction. A failure on one
// candidate is logged and leaves earlier candidates committed.
type Processor struct {
	sched  *Scheduler
	oracle decompose.Oracle
}

// NewProcessor creates a Processor that persists through sched.
func NewProcessor(sched *Scheduler, oracle decompose.Oracle) *Processor {
	return &Processor{sched: sched, oracle: oracle}
}

var _ DumpProcessor = (*Processor)(nil)

// Process parses dump into tasks and micro-units. Oracle failures degrade to
// defaults and are not returned. A cancelled context stops the remaining
// candidates; the partial result is returned with the context error.
func (p *Processor) Process(ctx context.Context, dump string) (*DumpResult, error) {
	result := &DumpResult{DumpID: uuid.NewString()}
	defer func() { p.sched.costs.AddOracle(result.Cost) }()

	candidates, cost, err := p.oracle.ParseDump(ctx, dump)
	result.Cost += cost
	if err != nil {
		log.Printf("[processor] parse dump failed dump=%s content=%q: %v", result.DumpID, models.Preview(dump), err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, nil
	}
	log.Printf("[processor] dump=%s parsed %d candidates", result.DumpID, len(candidates))

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			log.Printf("[processor] dump=%s cancelled after %d of %d candidates", result.DumpID, i, len(candidates))
			return result, err
		}

		summary, cost, err := p.processCandidate(ctx, result.DumpID, cand)
		result.Cost += cost
		if err != nil {
			log.Printf("[processor] candidate failed dump=%s index=%d content=%q: %v",
				result.DumpID, i, models.Preview(cand.Content), err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
			}
			continue
		}

		result.NewTasks++
		result.TotalMicroUnits += summary.MicroUnits
		result.Tasks = append(result.Tasks, *summary)
	}

	log.Printf("[processor] dump=%s created %d tasks, %d units, cost=$%.4f",
		result.DumpID, result.NewTasks, result.TotalMicroUnits, result.Cost)
	return result, nil
}

// processCandidate runs the oracle steps for one candidate and commits its
// task and units together.
func (p *Processor) processCandidate(ctx context.Context, dumpID string, cand decompose.Candidate) (*TaskSummary, float64, error) {
	var cost float64

	dups, err := p.sched.FindDuplicates(ctx, cand.Content)
	if err != nil {
		log.Printf("[processor] duplicate check failed content=%q: %v", models.Preview(cand.Content), err)
	}
	dupIDs := make([]int64, 0, len(dups))
	for _, d := range dups {
		dupIDs = append(dupIDs, d.Task.ID)
	}
	if len(dupIDs) > 0 {
		log.Printf("[processor] similar tasks found ids=%v content=%q; creating anyway", dupIDs, models.Preview(cand.Content))
	}

	meta := decompose.Metadata{
		Category:            cand.Category,
		EstimatedComplexity: cand.EstimatedComplexity,
		PriorityHints:       cand.PriorityHints.String(),
	}
	priority, c, err := p.oracle.ScorePriority(ctx, cand.Content, meta)
	cost += c
	if err != nil {
		log.Printf("[processor] priority defaulted content=%q: %v", models.Preview(cand.Content), err)
		priority = decompose.DefaultPriority
	}
	priority = decompose.ClampPriority(priority)

	drafts, c, err := p.oracle.Decompose(ctx, cand.Content)
	cost += c
	if err != nil {
		log.Printf("[processor] decomposition empty content=%q: %v", models.Preview(cand.Content), err)
		drafts = nil
	}

	if err := ctx.Err(); err != nil {
		return nil, cost, err
	}

	task := &models.Task{
		Content:  cand.Content,
		Priority: priority,
		Metadata: models.TaskMetadata{
			Category:            cand.Category,
			EstimatedComplexity: cand.EstimatedComplexity,
			PriorityHints:       meta.PriorityHints,
			DumpID:              dumpID,
		},
	}
	err = p.sched.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := state.CreateTask(ctx, tx, task); err != nil {
			return err
		}
		for i, d := range drafts {
			seq := d.SequenceOrder
			if seq <= 0 {
				seq = i + 1
			}
			unit := &models.MicroUnit{
				TaskID:           task.ID,
				Description:      d.Description,
				SequenceOrder:    seq,
				EstimatedMinutes: d.EstimatedMinutes,
				Metadata: models.UnitMetadata{
					BinaryCheck:  d.BinaryCheck,
					Dependencies: d.Dependencies,
				},
			}
			if err := state.CreateUnit(ctx, tx, unit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, cost, fmt.Errorf("persist task: %w", err)
	}

	log.Printf("[processor] created task id=%d priority=%d units=%d content=%q",
		task.ID, task.Priority, len(drafts), models.Preview(task.Content))
	return &TaskSummary{
		TaskID:     task.ID,
		Preview:    models.Preview(task.Content),
		MicroUnits: len(drafts),
		Priority:   task.Priority,
		Duplicates: dupIDs,
	}, cost, nil
}

// ResultCache memoizes dump results by content.
type ResultCache interface {
	Get(text string) (*DumpResult, bool)
	Put(text string, result *DumpResult)
}

// CachedProcessor skips the pipeline for dumps it has already processed.
// A hit reports zero cost.
type CachedProcessor struct {
	next  DumpProcessor
	cache ResultCache
}

// NewCachedProcessor wraps next with cache.
func NewCachedProcessor(next DumpProcessor, cache ResultCache) *CachedProcessor {
	return &CachedProcessor{next: next, cache: cache}
}

var _ DumpProcessor = (*CachedProcessor)(nil)

// Process returns the cached result for an equivalent dump, or runs the
// pipeline and caches a successful result that created tasks.
func (c *CachedProcessor) Process(ctx context.Context, dump string) (*DumpResult, error) {
	if cached, ok := c.cache.Get(dump); ok {
		hit := *cached
		hit.Cost = 0
		hit.Cached = true
		log.Printf("[processor] cache hit dump=%s", hit.DumpID)
		return &hit, nil
	}

	result, err := c.next.Process(ctx, dump)
	if err != nil {
		return result, err
	}
	if result != nil && result.NewTasks > 0 {
		c.cache.Put(dump, result)
	}
	return result, nil
}
