package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv unsets every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	cfg := Default()

	if cfg.Oracle.Timeout != 60*time.Second {
		t.Errorf("expected oracle timeout 60s, got %v", cfg.Oracle.Timeout)
	}
	if !cfg.Voice.Enabled || !cfg.Voice.FallbackText {
		t.Errorf("expected voice enabled with text fallback, got %+v", cfg.Voice)
	}
	if cfg.Storage.DBPath != "/data/taskhunter/taskhunter.db" {
		t.Errorf("unexpected db path %q", cfg.Storage.DBPath)
	}
	if cfg.Storage.MediaDir != "/data/taskhunter/media" {
		t.Errorf("unexpected media dir %q", cfg.Storage.MediaDir)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-sonnet-4-5
telegram:
  bot_token: 123:abc
  allowed_user_id: 4242
fish:
  model_id: voice-1
storage:
  db_path: /tmp/th.db
  media_dir: /tmp/media
oracle:
  timeout: 15s
voice:
  enabled: false
  fallback_text: false
log:
  file: /tmp/th.log
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" || cfg.Anthropic.Model != "claude-sonnet-4-5" {
		t.Errorf("unexpected anthropic config %+v", cfg.Anthropic)
	}
	if cfg.Telegram.BotToken != "123:abc" || cfg.Telegram.AllowedUserID != 4242 {
		t.Errorf("unexpected telegram config %+v", cfg.Telegram)
	}
	if cfg.Fish.ModelID != "voice-1" {
		t.Errorf("expected fish model voice-1, got %q", cfg.Fish.ModelID)
	}
	if cfg.Storage.DBPath != "/tmp/th.db" || cfg.Storage.MediaDir != "/tmp/media" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Oracle.Timeout != 15*time.Second {
		t.Errorf("expected oracle timeout 15s, got %v", cfg.Oracle.Timeout)
	}
	if cfg.Voice.Enabled || cfg.Voice.FallbackText {
		t.Errorf("expected voice disabled, got %+v", cfg.Voice)
	}
	if cfg.Log.File != "/tmp/th.log" {
		t.Errorf("expected log file /tmp/th.log, got %q", cfg.Log.File)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("telegram:\n  allowed_user_id: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TELEGRAM_ALLOWED_USER_ID", "777")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("FISH_API_KEY", "fish-env")
	t.Setenv("FISH_MODEL_ID", "voice-env")
	t.Setenv("TASKHUNTER_DB", "/env/th.db")
	t.Setenv("TASKHUNTER_MEDIA_DIR", "/env/media")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Telegram.AllowedUserID != 777 {
		t.Errorf("expected allowed user 777, got %d", cfg.Telegram.AllowedUserID)
	}
	if cfg.Telegram.BotToken != "env-token" {
		t.Errorf("expected env bot token, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Fish.APIKey != "fish-env" || cfg.Fish.ModelID != "voice-env" {
		t.Errorf("unexpected fish config %+v", cfg.Fish)
	}
	if cfg.Storage.DBPath != "/env/th.db" || cfg.Storage.MediaDir != "/env/media" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
}

func TestLoadFromPath_DefaultsStoragePaths(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_DATA_HOME", "/xdg")
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("voice:\n  enabled: true\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Storage.DBPath != "/xdg/taskhunter/taskhunter.db" {
		t.Errorf("unexpected db path %q", cfg.Storage.DBPath)
	}
	if cfg.Oracle.Timeout != 60*time.Second {
		t.Errorf("expected default oracle timeout, got %v", cfg.Oracle.Timeout)
	}
}

func TestLoadDotenv(t *testing.T) {
	t.Setenv("TH_DOTENV_NEW", "")
	os.Unsetenv("TH_DOTENV_NEW")
	t.Setenv("TH_DOTENV_SET", "from-shell")

	path := filepath.Join(t.TempDir(), ".env")
	content := "TH_DOTENV_NEW=from-file\nTH_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv failed: %v", err)
	}
	if got := os.Getenv("TH_DOTENV_NEW"); got != "from-file" {
		t.Errorf("TH_DOTENV_NEW = %q, want from-file", got)
	}
	if got := os.Getenv("TH_DOTENV_SET"); got != "from-shell" {
		t.Errorf("TH_DOTENV_SET = %q, existing env should win", got)
	}
}

func TestLoadDotenv_MissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if got := expandEnv("${TEST_VAR}"); got != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", got)
	}
	if got := expandEnv("prefix-${TEST_VAR}-suffix"); got != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != "/custom/config/taskhunter" {
		t.Errorf("expected /custom/config/taskhunter, got %q", dir)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Telegram.AllowedUserID = 99
	cfg.Fish.ModelID = "voice-2"
	cfg.Oracle.Timeout = 30 * time.Second
	cfg.Voice.FallbackText = false

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Telegram.AllowedUserID != 99 || loaded.Fish.ModelID != "voice-2" {
		t.Errorf("unexpected loaded config %+v / %+v", loaded.Telegram, loaded.Fish)
	}
	if loaded.Oracle.Timeout != 30*time.Second || loaded.Voice.FallbackText {
		t.Errorf("unexpected loaded config %+v / %+v", loaded.Oracle, loaded.Voice)
	}
}
