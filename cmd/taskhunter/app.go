package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/taskhunter/internal/api"
	"github.com/ShayCichocki/taskhunter/internal/cache"
	"github.com/ShayCichocki/taskhunter/internal/config"
	"github.com/ShayCichocki/taskhunter/internal/decompose"
	"github.com/ShayCichocki/taskhunter/internal/orchestrator"
	"github.com/ShayCichocki/taskhunter/internal/scheduler"
	"github.com/ShayCichocki/taskhunter/internal/state"
	"github.com/ShayCichocki/taskhunter/internal/transport"
	"github.com/ShayCichocki/taskhunter/internal/tts"
)

var (
	// dbPathFlag overrides storage.db_path for every command.
	dbPathFlag string
	// configPathFlag replaces the user and project config files.
	configPathFlag string
	listLimitFlag  int
)

// app holds the wired components shared by the commands.
type app struct {
	cfg   *config.Config
	db    *state.DB
	sched *scheduler.Scheduler

	// Set by withOracle.
	client    *api.Client
	oracle    decompose.Oracle
	processor scheduler.DumpProcessor
	dumpCache *cache.DumpCache

	// Set by withVoice.
	synth      tts.Synthesizer
	synthCache *cache.SynthesisCache

	logger  *orchestrator.DebugLogger
	logFile *os.File
}

// openApp loads configuration and opens the task store.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := state.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &app{
		cfg:    cfg,
		db:     db,
		sched:  scheduler.New(db),
		logger: orchestrator.NopLogger(),
	}, nil
}

// loadConfig loads the configuration named by --config, or the usual
// layered files, and applies --db.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPathFlag != "" {
		if err := config.LoadDotenv(".env"); err != nil {
			return nil, err
		}
		cfg, err = config.LoadFromPath(configPathFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPathFlag != "" {
		cfg.Storage.DBPath = dbPathFlag
	}
	return cfg, nil
}

// withOracle wires the planning client and the cached dump processor.
func (a *app) withOracle() error {
	key, err := config.GetAPIKey(a.cfg)
	if err != nil && !a.cfg.Anthropic.UseBedrock {
		return err
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(a.cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: a.cfg.Anthropic.UseBedrock,
		AWSRegion:     a.cfg.Anthropic.AWSRegion,
		AWSProfile:    a.cfg.Anthropic.AWSProfile,
		BaseURL:       a.cfg.Anthropic.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("create API client: %w", err)
	}

	a.client = client
	a.oracle = decompose.New(client, a.cfg.Oracle.Timeout)
	a.dumpCache = cache.NewDumpCache()
	a.processor = scheduler.NewCachedProcessor(scheduler.NewProcessor(a.sched, a.oracle), a.dumpCache)
	return nil
}

// withVoice wires speech synthesis when it is enabled and configured.
// Without it replies are sent as text.
func (a *app) withVoice() error {
	if !a.cfg.Voice.Enabled {
		return nil
	}
	if a.cfg.Fish.APIKey == "" {
		log.Printf("[voice] FISH_API_KEY not set, replying with text")
		return nil
	}

	fish, err := tts.NewFishClient(tts.FishConfig{
		APIKey:      a.cfg.Fish.APIKey,
		ReferenceID: a.cfg.Fish.ModelID,
		MediaDir:    a.cfg.Storage.MediaDir,
		BaseURL:     a.cfg.Fish.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("create synthesizer: %w", err)
	}

	a.synthCache = cache.NewSynthesisCache()
	if err := a.synthCache.Watch(a.cfg.Storage.MediaDir); err != nil {
		log.Printf("[voice] not watching %s: %v", a.cfg.Storage.MediaDir, err)
	}
	a.synth = tts.NewCachedSynthesizer(fish, a.synthCache)
	return nil
}

// withLogs redirects the process log to log.file and opens the
// conversation debug log next to the database.
func (a *app) withLogs() error {
	if a.cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.Log.File), 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(a.cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		log.SetOutput(f)
	}
	a.logger = orchestrator.NewDebugLoggerInDir(filepath.Dir(a.cfg.Storage.DBPath))
	return nil
}

// orchestrator builds a conversation orchestrator replying through d.
func (a *app) orchestrator(d transport.Deliverer) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithTextFallback(a.cfg.Voice.FallbackText),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithListLimit(listLimitFlag),
	}
	if a.synth != nil {
		opts = append(opts, orchestrator.WithSynthesizer(a.synth))
	}
	if a.dumpCache != nil {
		opts = append(opts, orchestrator.WithClearResets(a.dumpCache))
	}

	return orchestrator.New(orchestrator.RequiredConfig{
		Scheduler:     a.sched,
		Processor:     a.processor,
		Deliverer:     d,
		AllowedUserID: a.cfg.Telegram.AllowedUserID,
	}, opts...)
}

func (a *app) close() {
	if a.synthCache != nil {
		a.synthCache.Close()
	}
	a.logger.Close()
	if err := a.db.Close(); err != nil {
		log.Printf("[app] close database: %v", err)
	}
	if a.logFile != nil {
		log.SetOutput(os.Stderr)
		a.logFile.Close()
	}
}
