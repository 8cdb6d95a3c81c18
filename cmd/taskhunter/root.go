package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskhunter/internal/orchestrator"
)

var rootCmd = &cobra.Command{
	Use:   "taskhunter",
	Short: "Voice-first task manager",
	Long: `taskhunter turns spoken or typed brain dumps into prioritized tasks,
breaks each task into small micro-units, and serves them back one at a time.

With no arguments, launches the console: a local chat that behaves like the
Telegram bot. Use 'taskhunter run' to serve the bot itself.

Core capabilities:
- Parses a dump into tasks and flags likely duplicates
- Scores priority and decomposes tasks into micro-units
- Serves the next unit and records completions
- Replies with synthesized speech when a voice is configured`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsole(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Task database path (overrides storage.db_path)")
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Config file (replaces the user and project config)")
	rootCmd.PersistentFlags().IntVar(&listLimitFlag, "list-limit", orchestrator.DefaultListLimit, "Units read out by /tasks")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
