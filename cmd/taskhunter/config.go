package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/taskhunter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify taskhunter configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/taskhunter/config.yaml
Project-specific overrides can be placed in .taskhunter.yaml
Secrets are usually kept in a .env file or the environment.`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists the keys shown by 'config' in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"telegram.bot_token",
	"telegram.allowed_user_id",
	"fish.api_key",
	"fish.model_id",
	"storage.db_path",
	"storage.media_dir",
	"oracle.timeout",
	"voice.enabled",
	"voice.fallback_text",
	"log.file",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("\nAPI key source: %s\n", config.GetAPIKeySource(cfg))
	fmt.Printf("User config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("Project config: %s\n", project)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
// Secrets are masked.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "telegram.bot_token":
		return config.MaskAPIKey(cfg.Telegram.BotToken), nil
	case "telegram.allowed_user_id":
		return strconv.FormatInt(cfg.Telegram.AllowedUserID, 10), nil
	case "fish.api_key":
		return config.MaskAPIKey(cfg.Fish.APIKey), nil
	case "fish.model_id":
		return cfg.Fish.ModelID, nil
	case "storage.db_path":
		return cfg.Storage.DBPath, nil
	case "storage.media_dir":
		return cfg.Storage.MediaDir, nil
	case "oracle.timeout":
		return cfg.Oracle.Timeout.String(), nil
	case "voice.enabled":
		return strconv.FormatBool(cfg.Voice.Enabled), nil
	case "voice.fallback_text":
		return strconv.FormatBool(cfg.Voice.FallbackText), nil
	case "log.file":
		return cfg.Log.File, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.use_bedrock: %w", err)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "telegram.bot_token":
		cfg.Telegram.BotToken = value
	case "telegram.allowed_user_id":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for telegram.allowed_user_id: %w", err)
		}
		cfg.Telegram.AllowedUserID = n
	case "fish.api_key":
		cfg.Fish.APIKey = value
	case "fish.model_id":
		cfg.Fish.ModelID = value
	case "storage.db_path":
		cfg.Storage.DBPath = value
	case "storage.media_dir":
		cfg.Storage.MediaDir = value
	case "oracle.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for oracle.timeout: %w", err)
		}
		cfg.Oracle.Timeout = d
	case "voice.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for voice.enabled: %w", err)
		}
		cfg.Voice.Enabled = b
	case "voice.fallback_text":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for voice.fallback_text: %w", err)
		}
		cfg.Voice.FallbackText = b
	case "log.file":
		cfg.Log.File = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
