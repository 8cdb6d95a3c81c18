package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ShayCichocki/taskhunter/internal/scheduler"
	"github.com/ShayCichocki/taskhunter/pkg/models"
)

const (
	greetingText = "Task manager ready. Use slash dump to add tasks, slash tasks to list them, slash done when you finish one."
	helpText     = "Use slash commands. slash dump, slash tasks, slash task, slash done, slash skip, slash begin, slash delete, slash transcribe, slash status, slash clear."
	noTasksText  = "No pending tasks."
)

func createdText(r *scheduler.DumpResult) string {
	return fmt.Sprintf("Created %d %s with %d %s.",
		r.NewTasks, plural(r.NewTasks, "task", "tasks"),
		r.TotalMicroUnits, plural(r.TotalMicroUnits, "unit", "units"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// listTasks reads out pending units in scheduling order, up to listLimit.
func (o *Orchestrator) listTasks(ctx context.Context, chatID int64) {
	units, err := o.sched.ListPending(ctx, 0)
	if err != nil {
		log.Printf("[orchestrator] list tasks chat=%d: %v", chatID, err)
		o.say(ctx, chatID, "Error getting tasks.")
		return
	}
	if len(units) == 0 {
		o.say(ctx, chatID, noTasksText)
		return
	}

	var b strings.Builder
	b.WriteString("Task list. ")
	for i, u := range units {
		if i == o.listLimit {
			break
		}
		fmt.Fprintf(&b, "Number %d. ID %d. %s. ", i+1, u.ID, strings.TrimRight(u.Description, "."))
	}
	if extra := len(units) - o.listLimit; extra > 0 {
		fmt.Fprintf(&b, "And %d more tasks.", extra)
	}
	o.say(ctx, chatID, b.String())
}

// nextTasks reads out the next n pending units; args holds n, default 1.
func (o *Orchestrator) nextTasks(ctx context.Context, chatID int64, args string) {
	n := 1
	if args != "" {
		parsed, err := strconv.Atoi(args)
		if err != nil || parsed < 1 {
			o.say(ctx, chatID, helpText)
			return
		}
		n = parsed
	}

	units, err := o.sched.ListPending(ctx, n)
	if err != nil {
		log.Printf("[orchestrator] next tasks chat=%d n=%d: %v", chatID, n, err)
		o.say(ctx, chatID, "Error getting tasks.")
		return
	}
	if len(units) == 0 {
		o.say(ctx, chatID, noTasksText)
		return
	}
	if len(units) == 1 {
		o.say(ctx, chatID, nextText(&units[0].MicroUnit))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Next %d tasks. ", len(units))
	for i, u := range units {
		fmt.Fprintf(&b, "Number %d. ID %d. %s. ", i+1, u.ID, strings.TrimRight(u.Description, "."))
	}
	o.say(ctx, chatID, b.String())
}

func nextText(u *models.MicroUnit) string {
	return fmt.Sprintf("Next task. ID %d. %s.", u.ID, strings.TrimRight(u.Description, "."))
}

// announceNext appends the new top unit, or "No more tasks.", to prefix.
func (o *Orchestrator) announceNext(ctx context.Context, chatID int64, prefix string) {
	next, err := o.sched.SelectNext(ctx)
	if err != nil {
		log.Printf("[orchestrator] select next chat=%d: %v", chatID, err)
		o.say(ctx, chatID, prefix+" Error getting tasks.")
		return
	}
	if next == nil {
		o.say(ctx, chatID, prefix+" No more tasks.")
		return
	}
	o.say(ctx, chatID, prefix+" "+nextText(next))
}

// completeTop completes the highest-priority pending unit.
func (o *Orchestrator) completeTop(ctx context.Context, chatID int64) {
	top, err := o.sched.SelectNext(ctx)
	if err != nil {
		log.Printf("[orchestrator] select next chat=%d: %v", chatID, err)
		o.say(ctx, chatID, "Error getting tasks.")
		return
	}
	if top == nil {
		o.say(ctx, chatID, noTasksText)
		return
	}

	tr, err := o.sched.Complete(ctx, top.ID, scheduler.CompleteOptions{Success: true})
	if err != nil {
		log.Printf("[orchestrator] complete unit=%d content=%q: %v", top.ID, models.Preview(top.Description), err)
		o.say(ctx, chatID, "Error completing task.")
		return
	}

	prefix := "Done."
	if tr.TaskCompleted {
		prefix = "Done. Task finished."
	}
	o.announceNext(ctx, chatID, prefix)
}

// skipTop skips the highest-priority pending unit.
func (o *Orchestrator) skipTop(ctx context.Context, chatID int64) {
	top, err := o.sched.SelectNext(ctx)
	if err != nil {
		log.Printf("[orchestrator] select next chat=%d: %v", chatID, err)
		o.say(ctx, chatID, "Error getting tasks.")
		return
	}
	if top == nil {
		o.say(ctx, chatID, noTasksText)
		return
	}

	if _, err := o.sched.Skip(ctx, top.ID); err != nil {
		log.Printf("[orchestrator] skip unit=%d content=%q: %v", top.ID, models.Preview(top.Description), err)
		o.say(ctx, chatID, "Error skipping task.")
		return
	}
	o.announceNext(ctx, chatID, "Skipped.")
}

// parseID reads a unit id argument, speaking the problem when it is absent
// or malformed.
func (o *Orchestrator) parseID(ctx context.Context, chatID int64, args, missing string) (int64, bool) {
	if args == "" {
		o.say(ctx, chatID, missing)
		return 0, false
	}
	id, err := strconv.ParseInt(strings.Fields(args)[0], 10, 64)
	if err != nil || id <= 0 {
		o.say(ctx, chatID, "Invalid task ID format.")
		return 0, false
	}
	return id, true
}

// begin marks a unit and its task active.
func (o *Orchestrator) begin(ctx context.Context, chatID int64, args string) {
	id, ok := o.parseID(ctx, chatID, args, "Please provide task ID to begin.")
	if !ok {
		return
	}

	err := o.sched.Start(ctx, id)
	switch {
	case err == nil:
		o.say(ctx, chatID, fmt.Sprintf("Started task %d.", id))
	case errors.Is(err, scheduler.ErrNotFound):
		o.say(ctx, chatID, fmt.Sprintf("Task ID %d not found.", id))
	case errors.Is(err, scheduler.ErrInvalidState):
		o.say(ctx, chatID, fmt.Sprintf("Task %d cannot be started.", id))
	default:
		log.Printf("[orchestrator] start unit=%d: %v", id, err)
		o.say(ctx, chatID, "Error starting task.")
	}
}

// deleteUnit removes one micro-unit by id.
func (o *Orchestrator) deleteUnit(ctx context.Context, chatID int64, args string) {
	id, ok := o.parseID(ctx, chatID, args, "Please provide task ID to delete.")
	if !ok {
		return
	}

	_, err := o.sched.DeleteUnit(ctx, id)
	switch {
	case err == nil:
		o.say(ctx, chatID, fmt.Sprintf("Deleted task %d.", id))
	case errors.Is(err, scheduler.ErrNotFound):
		o.say(ctx, chatID, fmt.Sprintf("Task ID %d not found.", id))
	default:
		log.Printf("[orchestrator] delete unit=%d: %v", id, err)
		o.say(ctx, chatID, "Error deleting task.")
	}
}

// status reads out store counts and the session's spend.
func (o *Orchestrator) status(ctx context.Context, chatID int64) {
	sum, err := o.sched.Summary(ctx)
	if err != nil {
		log.Printf("[orchestrator] status chat=%d: %v", chatID, err)
		o.say(ctx, chatID, "Error getting status.")
		return
	}
	o.say(ctx, chatID, StatusText(sum))
}

// StatusText renders a summary as one utterance.
func StatusText(sum *scheduler.Summary) string {
	open := sum.Tasks[models.TaskStatusPending] + sum.Tasks[models.TaskStatusActive]
	pending := sum.Units[models.UnitStatusPending]
	return fmt.Sprintf("You have %d pending %s across %d open %s. %d completed today. %d %s finished. Spent %.2f dollars on planning and %.2f dollars on voice.",
		pending, plural(pending, "unit", "units"),
		open, plural(open, "task", "tasks"),
		sum.CompletedToday,
		sum.Tasks[models.TaskStatusComplete], plural(sum.Tasks[models.TaskStatusComplete], "task", "tasks"),
		sum.OracleCost, sum.SynthesisCost)
}

// clear wipes the store and any registered caches.
func (o *Orchestrator) clear(ctx context.Context, chatID int64) {
	if err := o.sched.Clear(ctx); err != nil {
		log.Printf("[orchestrator] clear chat=%d: %v", chatID, err)
		o.say(ctx, chatID, "Error clearing tasks.")
		return
	}
	for _, c := range o.clearCaches {
		c.Reset()
	}
	o.say(ctx, chatID, "All tasks cleared.")
}
