package config

import (
	"errors"
	"os"
	"testing"
)

func TestGetAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		cfg     *Config
		want    string
		wantErr error
	}{
		{"from environment variable", "sk-ant-env-key", &Config{}, "sk-ant-env-key", nil},
		{"env wins over config", "sk-ant-env-key", &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}}, "sk-ant-env-key", nil},
		{"from config", "", &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}}, "sk-ant-config-key", nil},
		{"unexpanded reference", "", &Config{Anthropic: AnthropicConfig{APIKey: "${TH_UNSET_KEY_VAR}"}}, "", ErrNoAPIKey},
		{"no key configured", "", &Config{}, "", ErrNoAPIKey},
		{"nil config", "", nil, "", ErrNoAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.env)
			if tt.env == "" {
				os.Unsetenv("ANTHROPIC_API_KEY")
			}

			key, err := GetAPIKey(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetAPIKey() error = %v, want %v", err, tt.wantErr)
			}
			if key != tt.want {
				t.Errorf("GetAPIKey() = %q, want %q", key, tt.want)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "sk-ant-REDACTED", false},
		{"empty key", "", true},
		{"wrong prefix", "sk-openai-12345678901234567890", true},
		{"too short", "sk-ant-abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTelegram(t *testing.T) {
	tests := []struct {
		name string
		cfg  TelegramConfig
		want error
	}{
		{"ready", TelegramConfig{BotToken: "123:abc", AllowedUserID: 42}, nil},
		{"no token", TelegramConfig{AllowedUserID: 42}, ErrNoBotToken},
		{"no user", TelegramConfig{BotToken: "123:abc"}, ErrNoAllowedUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateTelegram(&Config{Telegram: tt.cfg}); !errors.Is(err, tt.want) {
				t.Errorf("ValidateTelegram() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"valid key", "sk-ant-REDACTED", "sk-ant-...wxyz"},
		{"empty key", "", "(not set)"},
		{"short key", "short", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := MaskAPIKey(tt.key); result != tt.expected {
				t.Errorf("MaskAPIKey() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Run("from environment", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "test-key")
		if source := GetAPIKeySource(&Config{}); source != KeySourceEnv {
			t.Errorf("expected KeySourceEnv, got %v", source)
		}
	})

	t.Run("from config", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		os.Unsetenv("ANTHROPIC_API_KEY")

		cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}}
		if source := GetAPIKeySource(cfg); source != KeySourceConfig {
			t.Errorf("expected KeySourceConfig, got %v", source)
		}
	})

	t.Run("no key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		os.Unsetenv("ANTHROPIC_API_KEY")

		if source := GetAPIKeySource(&Config{}); source != KeySourceNone {
			t.Errorf("expected KeySourceNone, got %v", source)
		}
	})
}
