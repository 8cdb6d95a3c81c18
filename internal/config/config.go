// Package config handles configuration loading and management for taskhunter.
// It supports a .env file, XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for taskhunter.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Fish      FishConfig      `mapstructure:"fish"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Voice     VoiceConfig     `mapstructure:"voice"`
	Log       LogConfig       `mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model overrides the default planning model.
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	BaseURL    string `mapstructure:"base_url"`
}

// TelegramConfig holds bot settings.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	// AllowedUserID is the only Telegram user the bot answers.
	AllowedUserID int64  `mapstructure:"allowed_user_id"`
	BaseURL       string `mapstructure:"base_url"`
}

// FishConfig holds Fish Audio settings.
type FishConfig struct {
	APIKey string `mapstructure:"api_key"`
	// ModelID is the voice reference id.
	ModelID string `mapstructure:"model_id"`
	BaseURL string `mapstructure:"base_url"`
}

// StorageConfig holds file locations.
type StorageConfig struct {
	DBPath   string `mapstructure:"db_path"`
	MediaDir string `mapstructure:"media_dir"`
}

// OracleConfig holds settings for planning calls.
type OracleConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// VoiceConfig controls spoken replies.
type VoiceConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// FallbackText sends a reply as text when synthesis fails.
	FallbackText bool `mapstructure:"fallback_text"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// File redirects the process log when set.
	File string `mapstructure:"file"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"anthropic.api_key":        "ANTHROPIC_API_KEY",
	"telegram.bot_token":       "TELEGRAM_BOT_TOKEN",
	"telegram.allowed_user_id": "TELEGRAM_ALLOWED_USER_ID",
	"fish.api_key":             "FISH_API_KEY",
	"fish.model_id":            "FISH_MODEL_ID",
	"storage.db_path":          "TASKHUNTER_DB",
	"storage.media_dir":        "TASKHUNTER_MEDIA_DIR",
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables, including those from ./.env
// 2. Project config (.taskhunter.yaml in current directory or parent)
// 3. User config (~/.config/taskhunter/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := LoadDotenv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
// Environment variables still override the file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadDotenv exports the variables in path without overriding ones already
// set. A missing file is not an error.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	for key, env := range envBindings {
		v.BindEnv(key, env)
	}
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Telegram.BotToken = expandEnv(cfg.Telegram.BotToken)
	cfg.Fish.APIKey = expandEnv(cfg.Fish.APIKey)

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(DataDir(), "taskhunter.db")
	}
	if cfg.Storage.MediaDir == "" {
		cfg.Storage.MediaDir = filepath.Join(DataDir(), "media")
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("telegram.bot_token", cfg.Telegram.BotToken)
	v.Set("telegram.allowed_user_id", cfg.Telegram.AllowedUserID)
	v.Set("fish.api_key", cfg.Fish.APIKey)
	v.Set("fish.model_id", cfg.Fish.ModelID)
	v.Set("storage.db_path", cfg.Storage.DBPath)
	v.Set("storage.media_dir", cfg.Storage.MediaDir)
	v.Set("oracle.timeout", cfg.Oracle.Timeout.String())
	v.Set("voice.enabled", cfg.Voice.Enabled)
	v.Set("voice.fallback_text", cfg.Voice.FallbackText)
	v.Set("log.file", cfg.Log.File)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.allowed_user_id", 0)

	v.SetDefault("fish.api_key", "")
	v.SetDefault("fish.model_id", "")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.media_dir", "")

	v.SetDefault("oracle.timeout", "60s")

	v.SetDefault("voice.enabled", true)
	v.SetDefault("voice.fallback_text", true)

	v.SetDefault("log.file", "")
}

// DataDir returns the XDG data directory for taskhunter.
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "taskhunter")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "taskhunter")
	}
	return filepath.Join(home, ".local", "share", "taskhunter")
}

// getUserConfigDir returns the XDG config directory for taskhunter.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskhunter")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskhunter")
	}
	return filepath.Join(home, ".config", "taskhunter")
}

// findProjectConfig searches for .taskhunter.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".taskhunter.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DBPath:   filepath.Join(DataDir(), "taskhunter.db"),
			MediaDir: filepath.Join(DataDir(), "media"),
		},
		Oracle: OracleConfig{
			Timeout: 60 * time.Second,
		},
		Voice: VoiceConfig{
			Enabled:      true,
			FallbackText: true,
		},
	}
}
