package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskhunter/internal/config"
	"github.com/ShayCichocki/taskhunter/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the Telegram bot",
	Long: `Serve the Telegram bot by long polling for updates.

Only messages from telegram.allowed_user_id are answered; everything else is
dropped and recorded in the conversation debug log. Replies are spoken when a
Fish Audio key is configured and voice.enabled is true.

Required settings:
  TELEGRAM_BOT_TOKEN        bot token from BotFather
  TELEGRAM_ALLOWED_USER_ID  the one user the bot answers
  ANTHROPIC_API_KEY         planning model access (or anthropic.use_bedrock)

Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := config.ValidateTelegram(a.cfg); err != nil {
		return err
	}
	if err := a.withLogs(); err != nil {
		return err
	}
	if err := a.withOracle(); err != nil {
		return err
	}
	if err := a.withVoice(); err != nil {
		return err
	}

	bot, err := transport.NewTelegram(a.cfg.Telegram.BotToken, a.cfg.Telegram.BaseURL)
	if err != nil {
		return err
	}
	poller := transport.NewPoller(bot, a.orchestrator(bot))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			log.Println("[run] received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Printf("taskhunter bot running (db %s), Ctrl+C to stop\n", a.db.Path())
	log.Printf("[run] polling for user %d", a.cfg.Telegram.AllowedUserID)

	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("poll updates: %w", err)
	}
	log.Printf("[run] stopped at offset %d", poller.Offset())
	return nil
}
