package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskhunter/internal/config"
	"github.com/ShayCichocki/taskhunter/internal/state"
)

var (
	initForce   bool
	initWithEnv bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up taskhunter",
	Long: `Prepare everything taskhunter needs to run:
  - Creates the data directory, task database and media directory
  - Writes the user config file if it does not exist
  - Reports which credentials are set
  - Optionally writes a .env template in the current directory

Examples:
  taskhunter init             # Set up with defaults
  taskhunter init --with-env  # Also write a .env template
  taskhunter init --force     # Overwrite the user config with defaults`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing user config")
	initCmd.Flags().BoolVar(&initWithEnv, "with-env", false, "Write a .env template in the current directory")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("Initializing taskhunter...\n\n")

	db, err := state.Open(cfg.Storage.DBPath)
	if err != nil {
		printStatus("✗", "Could not open task database", color.FgRed)
		return err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate database: %w", err)
	}
	db.Close()
	printStatus("✓", fmt.Sprintf("Task database ready at %s", cfg.Storage.DBPath), color.FgGreen)

	if err := os.MkdirAll(cfg.Storage.MediaDir, 0755); err != nil {
		return fmt.Errorf("creating media directory: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Media directory ready at %s", cfg.Storage.MediaDir), color.FgGreen)

	configPath := config.GetUserConfigPath()
	if _, err := os.Stat(configPath); err == nil && !initForce {
		printStatus("✓", fmt.Sprintf("Config exists at %s", configPath), color.FgGreen)
	} else {
		if err := config.Save(config.Default()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Wrote config to %s", configPath), color.FgGreen)
	}

	missing := reportCredentials(cfg)

	if initWithEnv {
		wrote, err := writeEnvTemplate(".env")
		if err != nil {
			return fmt.Errorf("writing .env: %w", err)
		}
		if wrote {
			printStatus("✓", "Wrote .env template", color.FgGreen)
		} else {
			printStatus("⚠", ".env already exists, left unchanged", color.FgYellow)
		}
	}

	fmt.Printf("\n%s taskhunter initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if len(missing) > 0 {
		fmt.Println("  1. Set the missing values in .env or your shell:")
		for _, env := range missing {
			fmt.Printf("     %s=...\n", env)
		}
		fmt.Println()
	}
	fmt.Println("  2. Try it locally:")
	fmt.Println("     taskhunter console")
	fmt.Println()
	fmt.Println("  3. Serve the bot:")
	fmt.Println("     taskhunter run")
	return nil
}

// reportCredentials prints which credentials are set and returns the
// environment variables still missing.
func reportCredentials(cfg *config.Config) []string {
	checks := []struct {
		env      string
		set      bool
		optional string
	}{
		{"ANTHROPIC_API_KEY", config.GetAPIKeySource(cfg) != config.KeySourceNone || cfg.Anthropic.UseBedrock, ""},
		{"TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken != "", "needed for 'run'"},
		{"TELEGRAM_ALLOWED_USER_ID", cfg.Telegram.AllowedUserID > 0, "needed for 'run'"},
		{"FISH_API_KEY", cfg.Fish.APIKey != "", "replies are text without it"},
	}

	if key, err := config.GetAPIKey(cfg); err == nil {
		if err := config.ValidateAPIKey(key); err != nil {
			printStatus("⚠", fmt.Sprintf("ANTHROPIC_API_KEY looks wrong: %v", err), color.FgYellow)
		}
	}

	var missing []string
	for _, c := range checks {
		switch {
		case c.set:
			printStatus("✓", c.env+" is set", color.FgGreen)
		case c.optional != "":
			printStatus("⚠", fmt.Sprintf("%s not set (%s)", c.env, c.optional), color.FgYellow)
			missing = append(missing, c.env)
		default:
			printStatus("✗", c.env+" not set", color.FgRed)
			missing = append(missing, c.env)
		}
	}
	return missing
}

const envTemplate = `# taskhunter secrets
ANTHROPIC_API_KEY=
TELEGRAM_BOT_TOKEN=
TELEGRAM_ALLOWED_USER_ID=
FISH_API_KEY=
FISH_MODEL_ID=
`

// writeEnvTemplate writes envTemplate to path unless the file exists.
func writeEnvTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, err
		}
	}
	if err := os.WriteFile(path, []byte(envTemplate), 0600); err != nil {
		return false, err
	}
	return true, nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), strings.TrimSpace(message))
}
