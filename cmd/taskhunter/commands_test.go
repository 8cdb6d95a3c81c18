package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/taskhunter/internal/config"
	"github.com/ShayCichocki/taskhunter/internal/scheduler"
	"github.com/ShayCichocki/taskhunter/internal/state"
	"github.com/ShayCichocki/taskhunter/pkg/models"
)

func TestConfigValueRoundTrip(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"anthropic.model", "claude-haiku-4-5", "claude-haiku-4-5"},
		{"anthropic.use_bedrock", "true", "true"},
		{"anthropic.aws_region", "us-west-2", "us-west-2"},
		{"telegram.allowed_user_id", "4242", "4242"},
		{"fish.model_id", "voice-1", "voice-1"},
		{"storage.db_path", "/tmp/th.db", "/tmp/th.db"},
		{"oracle.timeout", "45s", "45s"},
		{"voice.enabled", "false", "false"},
		{"voice.fallback_text", "false", "false"},
		{"log.file", "/tmp/th.log", "/tmp/th.log"},
		{"Fish.Model_ID", "voice-2", "voice-2"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.Default()
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue(%q) error: %v", tt.key, err)
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestConfigValue_SecretsMasked(t *testing.T) {
	cfg := config.Default()
	if err := setConfigValue(cfg, "fish.api_key", "fish-secret-key-1234567890"); err != nil {
		t.Fatal(err)
	}
	got, _ := getConfigValue(cfg, "fish.api_key")
	if strings.Contains(got, "secret") {
		t.Errorf("secret should be masked, got %q", got)
	}
	if got, _ := getConfigValue(cfg, "telegram.bot_token"); got != "(not set)" {
		t.Errorf("unset token = %q, want (not set)", got)
	}
}

func TestConfigValue_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "nope.key", "x"},
		{"bad duration", "oracle.timeout", "soon"},
		{"bad bool", "voice.enabled", "maybe"},
		{"bad user id", "telegram.allowed_user_id", "me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := setConfigValue(config.Default(), tt.key, tt.value); err == nil {
				t.Errorf("setConfigValue(%q, %q) should fail", tt.key, tt.value)
			}
		})
	}

	if _, err := getConfigValue(config.Default(), "nope.key"); err == nil {
		t.Error("getConfigValue should reject unknown keys")
	}
}

func TestConfigKeysAreReadable(t *testing.T) {
	cfg := config.Default()
	for _, key := range configKeys {
		if _, err := getConfigValue(cfg, key); err != nil {
			t.Errorf("listed key %q is not readable: %v", key, err)
		}
	}
}

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"#7", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseIDArg(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIDArg(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseIDArg(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDumpText(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{"argument", []string{"buy milk"}, "ignored", "buy milk", false},
		{"stdin", nil, "buy milk\ncall mom\n", "buy milk\ncall mom", false},
		{"dash reads stdin", []string{"-"}, "walk dog", "walk dog", false},
		{"empty stdin", nil, "  \n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dumpText(tt.args, strings.NewReader(tt.stdin))
			if (err != nil) != tt.wantErr {
				t.Fatalf("dumpText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("dumpText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinIDs(t *testing.T) {
	if got := joinIDs([]int64{3, 14}); got != "#3, #14" {
		t.Errorf("joinIDs = %q", got)
	}
	if got := joinIDs(nil); got != "" {
		t.Errorf("joinIDs(nil) = %q, want empty", got)
	}
}

func setupScheduler(t *testing.T) (*scheduler.Scheduler, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return scheduler.New(db), db
}

// seedTask creates a task with one pending unit per description, in order.
func seedTask(t *testing.T, db *state.DB, content string, priority int, descriptions ...string) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	var taskID int64
	var unitIDs []int64
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		task := &models.Task{Content: content, Priority: priority}
		if err := state.CreateTask(ctx, tx, task); err != nil {
			return err
		}
		taskID = task.ID
		for i, d := range descriptions {
			u := &models.MicroUnit{TaskID: task.ID, Description: d, SequenceOrder: i + 1}
			if err := state.CreateUnit(ctx, tx, u); err != nil {
				return err
			}
			unitIDs = append(unitIDs, u.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed task failed: %v", err)
	}
	return taskID, unitIDs
}

func TestTargetUnit(t *testing.T) {
	sched, db := setupScheduler(t)
	ctx := context.Background()

	if _, err := targetUnit(ctx, sched, nil); err == nil {
		t.Error("targetUnit on an empty store should fail")
	}

	seedTask(t, db, "low", 10, "low one")
	_, high := seedTask(t, db, "high", 90, "high one", "high two")

	got, err := targetUnit(ctx, sched, nil)
	if err != nil {
		t.Fatalf("targetUnit: %v", err)
	}
	if got != high[0] {
		t.Errorf("targetUnit() = %d, want top unit %d", got, high[0])
	}

	got, err = targetUnit(ctx, sched, []string{"#99"})
	if err != nil || got != 99 {
		t.Errorf("targetUnit(#99) = %d, %v", got, err)
	}
}

func TestWriteExport(t *testing.T) {
	sched, db := setupScheduler(t)
	ctx := context.Background()
	taskID, _ := seedTask(t, db, "plan trip", 70, "book flights", "pack bag")

	tree, err := sched.Tree(ctx)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}

	var buf bytes.Buffer
	if err := writeExport(&buf, tree); err != nil {
		t.Fatalf("writeExport: %v", err)
	}

	var doc struct {
		Tasks []struct {
			ID      int64  `yaml:"id"`
			Content string `yaml:"content"`
			Units   []struct {
				Description string `yaml:"description"`
				Status      string `yaml:"status"`
			} `yaml:"units"`
		} `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid YAML: %v\n%s", err, buf.String())
	}
	if len(doc.Tasks) != 1 || doc.Tasks[0].ID != taskID || doc.Tasks[0].Content != "plan trip" {
		t.Fatalf("unexpected export %+v", doc.Tasks)
	}
	if len(doc.Tasks[0].Units) != 2 || doc.Tasks[0].Units[1].Description != "pack bag" {
		t.Errorf("unexpected units %+v", doc.Tasks[0].Units)
	}
	if doc.Tasks[0].Units[0].Status != string(models.UnitStatusPending) {
		t.Errorf("unit status = %q, want pending", doc.Tasks[0].Units[0].Status)
	}
}

func TestWriteExport_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeExport(&buf, nil); err != nil {
		t.Fatalf("writeExport: %v", err)
	}
	if !strings.Contains(buf.String(), "tasks: []") {
		t.Errorf("empty export = %q, want an empty tasks list", buf.String())
	}
}

func TestWriteEnvTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", ".env")

	wrote, err := writeEnvTemplate(path)
	if err != nil || !wrote {
		t.Fatalf("writeEnvTemplate() = %v, %v", wrote, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "TELEGRAM_BOT_TOKEN=") {
		t.Errorf("template missing bot token line:\n%s", data)
	}

	if err := os.WriteFile(path, []byte("KEEP=1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	wrote, err = writeEnvTemplate(path)
	if err != nil || wrote {
		t.Errorf("existing .env should be kept, got wrote=%v err=%v", wrote, err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "KEEP=1\n" {
		t.Errorf(".env was overwritten: %q", data)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := []string{"init", "run", "console", "dump", "next", "tasks", "start", "done",
		"skip", "delete", "archive", "clear", "status", "similar", "history", "export", "prune", "say",
		"config", "version"}

	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == rootCmd {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestPruneDefaultAge(t *testing.T) {
	flag := pruneCmd.Flags().Lookup("older-than")
	if flag == nil {
		t.Fatal("prune should have --older-than")
	}
	if flag.DefValue != (30 * 24 * time.Hour).String() {
		t.Errorf("default age = %s", flag.DefValue)
	}
}
