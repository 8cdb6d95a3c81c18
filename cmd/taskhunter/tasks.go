package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskhunter/internal/orchestrator"
	"github.com/ShayCichocki/taskhunter/internal/scheduler"
	"github.com/ShayCichocki/taskhunter/internal/state"
	"github.com/ShayCichocki/taskhunter/pkg/models"
)

var (
	doneMinutes int
	doneNotes   string
	doneFailed  bool
	tasksAll    bool
	clearYes    bool
	exportOut   string
	similarLLM  bool
	pruneAge    time.Duration
)

var dumpCmd = &cobra.Command{
	Use:   "dump [text]",
	Short: "Turn a brain dump into tasks",
	Long: `Parse free text into tasks, score and decompose each one, and store them.

With no argument or "-", the dump is read from stdin.

Examples:
  taskhunter dump "buy milk, call mom about the weekend"
  pbpaste | taskhunter dump`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDump,
}

var nextCmd = &cobra.Command{
	Use:   "next [n]",
	Short: "Show the next pending units",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNext,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks and their units",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

var startCmd = &cobra.Command{
	Use:   "start <unit-id>",
	Short: "Mark a unit as started",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var doneCmd = &cobra.Command{
	Use:   "done [unit-id]",
	Short: "Complete a unit (the next one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFinish(cmd, args, false)
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip [unit-id]",
	Short: "Skip a unit (the next one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFinish(cmd, args, true)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <unit-id>",
	Short: "Delete a unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var archiveCmd = &cobra.Command{
	Use:   "archive <task-id>",
	Short: "Shelve a task so its units are no longer served",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchive,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every task, unit and execution",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task counts and progress",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var similarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "Find open tasks resembling text",
	Long: `Find pending and active tasks that share terms with text.

With --oracle, the planning model also compares text against every open task
and suggests how to merge the ones it finds similar.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimilar,
}

var historyCmd = &cobra.Command{
	Use:   "history <unit-id>",
	Short: "Show the execution log of a unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every task and unit as YAML",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete finished tasks older than a cutoff",
	Long: `Delete complete and archived tasks that have not changed within the
given age, together with their units and execution history.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

func init() {
	doneCmd.Flags().IntVar(&doneMinutes, "minutes", 0, "Actual minutes spent")
	doneCmd.Flags().StringVar(&doneNotes, "notes", "", "Notes recorded with the execution")
	doneCmd.Flags().BoolVar(&doneFailed, "failed", false, "Record the attempt as unsuccessful")
	tasksCmd.Flags().BoolVar(&tasksAll, "all", false, "Include complete and archived tasks")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deleting everything")
	similarCmd.Flags().BoolVar(&similarLLM, "oracle", false, "Also ask the planning model")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	pruneCmd.Flags().DurationVar(&pruneAge, "older-than", 30*24*time.Hour, "Minimum age of tasks to delete")
}

func runDump(cmd *cobra.Command, args []string) error {
	text, err := dumpText(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.withOracle(); err != nil {
		return err
	}

	result, err := a.processor.Process(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("process dump: %w", err)
	}
	if result.NewTasks == 0 {
		fmt.Println("No tasks could be extracted from your input.")
		return nil
	}

	printStatus("✓", fmt.Sprintf("Created %d task(s) with %d unit(s), cost $%.4f",
		result.NewTasks, result.TotalMicroUnits, result.Cost), color.FgGreen)
	if in, out := a.client.Tracker().Total(); a.client.Tracker().Calls() > 0 {
		fmt.Println(color.HiBlackString("  %d planning call(s), %d input / %d output tokens",
			a.client.Tracker().Calls(), in, out))
	}
	for _, t := range result.Tasks {
		fmt.Printf("  #%d  p%-3d %d unit(s)  %s\n", t.TaskID, t.Priority, t.MicroUnits, t.Preview)
		if len(t.Duplicates) > 0 {
			printStatus("  ⚠", fmt.Sprintf("resembles task(s) %s", joinIDs(t.Duplicates)), color.FgYellow)
		}
	}
	return nil
}

// dumpText returns the dump from args or, for no argument or "-", from r.
func dumpText(args []string, r io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("empty dump")
	}
	return text, nil
}

func runNext(cmd *cobra.Command, args []string) error {
	n := 1
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		n = v
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	units, err := a.sched.ListPending(cmd.Context(), n)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		fmt.Println("No more tasks.")
		return nil
	}
	for _, u := range units {
		fmt.Printf("%s  %s  %s\n",
			color.CyanString("#%d", u.ID),
			u.Description,
			color.HiBlackString("(task %d, p%d)", u.TaskID, u.TaskPriority))
	}
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	tree, err := a.sched.Tree(cmd.Context())
	if err != nil {
		return err
	}

	shown := 0
	for _, t := range tree {
		if !tasksAll && !t.Status.Schedulable() {
			continue
		}
		shown++
		fmt.Printf("%s %s %s\n",
			color.New(color.Bold).Sprintf("#%d", t.ID),
			taskStatusColor(t.Status).Sprintf("[%s p%d]", t.Status, t.Priority),
			models.Preview(t.Content))
		for _, u := range t.Units {
			fmt.Printf("    %s %s %s\n",
				color.HiBlackString("%d.", u.SequenceOrder),
				unitStatusColor(u.Status).Sprintf("%-8s", u.Status),
				fmt.Sprintf("#%d %s", u.ID, u.Description))
		}
	}
	if shown == 0 {
		fmt.Println("No tasks.")
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.sched.Start(cmd.Context(), id); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Started unit %d", id), color.FgGreen)
	return nil
}

func runFinish(cmd *cobra.Command, args []string, skip bool) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	id, err := targetUnit(cmd.Context(), a.sched, args)
	if err != nil {
		return err
	}

	var tr *scheduler.Transition
	if skip {
		tr, err = a.sched.Skip(cmd.Context(), id)
	} else {
		opts := scheduler.CompleteOptions{Success: !doneFailed, Notes: doneNotes}
		if doneMinutes > 0 {
			opts.ActualMinutes = &doneMinutes
		}
		tr, err = a.sched.Complete(cmd.Context(), id, opts)
	}
	if err != nil {
		return err
	}

	verb := "Completed"
	if skip {
		verb = "Skipped"
	}
	printStatus("✓", fmt.Sprintf("%s unit %d: %s", verb, tr.Unit.ID, tr.Unit.Description), color.FgGreen)
	if tr.TaskCompleted {
		printStatus("✓", fmt.Sprintf("Task %d finished", tr.Unit.TaskID), color.FgGreen)
	} else {
		fmt.Printf("  %d unit(s) left in task %d\n", tr.Remaining, tr.Unit.TaskID)
	}
	return nil
}

// targetUnit returns the unit named in args, or the next pending unit.
func targetUnit(ctx context.Context, sched *scheduler.Scheduler, args []string) (int64, error) {
	if len(args) == 1 {
		return parseIDArg(args[0])
	}
	next, err := sched.SelectNext(ctx)
	if err != nil {
		return 0, err
	}
	if next == nil {
		return 0, errors.New("no pending units")
	}
	return next.ID, nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	tr, err := a.sched.DeleteUnit(cmd.Context(), id)
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Deleted unit %d", id), color.FgGreen)
	if tr.TaskCompleted {
		printStatus("✓", fmt.Sprintf("Task %d finished", tr.Unit.TaskID), color.FgGreen)
	}
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.sched.Archive(cmd.Context(), id); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Archived task %d", id), color.FgGreen)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return errors.New("refusing to delete every task without --yes")
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.sched.Clear(cmd.Context()); err != nil {
		return err
	}
	printStatus("✓", "All tasks cleared", color.FgGreen)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	sum, err := a.sched.Summary(cmd.Context())
	if err != nil {
		return err
	}

	var rows [3]int
	err = a.db.View(cmd.Context(), func(q state.Querier) error {
		var err error
		rows[0], rows[1], rows[2], err = state.CountRows(cmd.Context(), q)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s (%d tasks, %d units, %d executions)\n\n", a.db.Path(), rows[0], rows[1], rows[2])
	fmt.Println("Tasks:")
	for _, s := range []models.TaskStatus{models.TaskStatusPending, models.TaskStatusActive, models.TaskStatusComplete, models.TaskStatusArchived} {
		fmt.Printf("  %s %d\n", taskStatusColor(s).Sprintf("%-9s", s), sum.Tasks[s])
	}
	fmt.Println("Units:")
	for _, s := range []models.UnitStatus{models.UnitStatusPending, models.UnitStatusActive, models.UnitStatusComplete, models.UnitStatusSkipped} {
		fmt.Printf("  %s %d\n", unitStatusColor(s).Sprintf("%-9s", s), sum.Units[s])
	}
	fmt.Printf("\nCompleted today: %d\n", sum.CompletedToday)
	fmt.Println()
	fmt.Println(orchestrator.StatusText(sum))
	return nil
}

func runSimilar(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	dups, err := a.sched.FindDuplicates(cmd.Context(), text)
	if err != nil {
		return err
	}
	if len(dups) == 0 {
		fmt.Println("No similar open tasks.")
	}
	for _, d := range dups {
		fmt.Printf("#%d  %s  %s\n", d.Task.ID,
			color.YellowString("%3.0f%%", d.Relevance*100),
			models.Preview(d.Task.Content))
	}

	if !similarLLM {
		return nil
	}
	if err := a.withOracle(); err != nil {
		return err
	}
	return compareWithOracle(cmd.Context(), a, text)
}

// compareWithOracle prints the oracle's similarity verdicts for text
// against every open task.
func compareWithOracle(ctx context.Context, a *app, text string) error {
	tree, err := a.sched.Tree(ctx)
	if err != nil {
		return err
	}
	var existing []string
	for _, t := range tree {
		if t.Status.Schedulable() {
			existing = append(existing, t.Content)
		}
	}

	matches, cost, err := a.oracle.CompareSimilar(ctx, text, existing)
	a.sched.Costs().AddOracle(cost)
	if err != nil {
		return err
	}

	fmt.Println()
	if len(matches) == 0 {
		fmt.Println("The planning model found no similar tasks.")
		return nil
	}
	fmt.Println("Planning model:")
	for _, m := range matches {
		fmt.Printf("  %s  %s\n", color.YellowString("%3.0f%%", m.Similarity*100), models.Preview(m.ExistingTask))
		if m.MergeSuggestion != "" {
			fmt.Printf("       %s\n", color.HiBlackString(m.MergeSuggestion))
		}
	}
	fmt.Println(color.HiBlackString("  cost $%.4f", cost))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := parseIDArg(args[0])
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	unit, execs, err := a.sched.History(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s %s\n", color.CyanString("#%d", unit.ID),
		unitStatusColor(unit.Status).Sprintf("[%s]", unit.Status), unit.Description)
	if len(execs) == 0 {
		fmt.Println("  No executions recorded.")
		return nil
	}
	for _, e := range execs {
		outcome := color.GreenString("ok")
		if !e.Success {
			outcome = color.RedString("failed")
		}
		line := fmt.Sprintf("  %s  %s", e.StartedAt.Local().Format("2006-01-02 15:04"), outcome)
		if e.Notes != "" {
			line += "  " + e.Notes
		}
		fmt.Println(line)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	tree, err := a.sched.Tree(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeExport(out, tree)
}

// writeExport encodes tree as a YAML document with a tasks list.
func writeExport(w io.Writer, tree []scheduler.TaskTree) error {
	if tree == nil {
		tree = []scheduler.TaskTree{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Tasks []scheduler.TaskTree `yaml:"tasks"`
	}{tree}); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return enc.Close()
}

func runPrune(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.db.PurgeCompleted(cmd.Context(), pruneAge)
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Pruned %d finished task(s) older than %s", n, pruneAge), color.FgGreen)
	return nil
}

func parseIDArg(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "#" + strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func taskStatusColor(s models.TaskStatus) *color.Color {
	switch s {
	case models.TaskStatusActive:
		return color.New(color.FgCyan)
	case models.TaskStatusComplete:
		return color.New(color.FgGreen)
	case models.TaskStatusArchived:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgYellow)
	}
}

func unitStatusColor(s models.UnitStatus) *color.Color {
	switch s {
	case models.UnitStatusActive:
		return color.New(color.FgCyan)
	case models.UnitStatusComplete:
		return color.New(color.FgGreen)
	case models.UnitStatusSkipped:
		return color.New(color.FgHiBlack)
	default:
		return color.New(color.FgYellow)
	}
}
