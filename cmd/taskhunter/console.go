package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskhunter/internal/transport"
	"github.com/ShayCichocki/taskhunter/internal/tui"
)

var consoleTranscript string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the bot locally",
	Long: `Open a terminal chat that behaves like the Telegram bot.

Every command the bot understands works here: /dump, /tasks, /task, /done,
/skip, /begin, /delete, /status, /clear and /help. Voice replies show the
path of the generated audio file.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVar(&consoleTranscript, "transcript", "", "Write the conversation to this file on exit")
}

func runConsole(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.withLogs(); err != nil {
		return err
	}
	if err := a.withOracle(); err != nil {
		return err
	}
	if err := a.withVoice(); err != nil {
		return err
	}

	// The console speaks for the allowed user, or for a fixed local user
	// when no bot is configured.
	userID := a.cfg.Telegram.AllowedUserID
	if userID <= 0 {
		userID = 1
		a.cfg.Telegram.AllowedUserID = userID
	}

	// Suppress log output while TUI is active
	if a.logFile == nil {
		originalOutput := log.Writer()
		log.SetOutput(io.Discard)
		defer log.SetOutput(originalOutput)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	program, console := tui.NewConsoleProgram(ctx, func(d transport.Deliverer) transport.Handler {
		return a.orchestrator(d)
	}, userID)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	if consoleTranscript != "" {
		text := strings.Join(console.Transcript(), "\n") + "\n"
		if err := os.WriteFile(consoleTranscript, []byte(text), 0644); err != nil {
			return fmt.Errorf("write transcript: %w", err)
		}
	}
	return nil
}
