package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskhunter/internal/orchestrator"
)

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Synthesize text to an audio file",
	Long: `Clean text the way spoken replies are cleaned, synthesize it with the
configured Fish Audio voice, and print the audio file path.

Repeated text is served from the media directory without a new request.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSay,
}

func runSay(cmd *cobra.Command, args []string) error {
	text := orchestrator.Preprocess(strings.Join(args, " "))
	if text == "" {
		return errors.New("nothing to say after cleaning the text")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.withVoice(); err != nil {
		return err
	}
	if a.synth == nil {
		return errors.New("voice is not configured: set FISH_API_KEY and voice.enabled")
	}

	art, err := a.synth.Synthesize(cmd.Context(), text)
	if err != nil {
		return err
	}
	if art.Cached {
		printStatus("✓", "Reused cached audio", color.FgGreen)
	} else {
		printStatus("✓", fmt.Sprintf("Synthesized %d bytes for $%.4f", art.Bytes, art.Cost), color.FgGreen)
	}
	fmt.Println(art.Path)
	return nil
}
