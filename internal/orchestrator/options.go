package orchestrator

import (
	"github.com/ShayCichocki/taskhunter/internal/scheduler"
	"github.com/ShayCichocki/taskhunter/internal/transport"
	"github.com/ShayCichocki/taskhunter/internal/tts"
)

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Scheduler serves and completes units.
	Scheduler *scheduler.Scheduler
	// Processor turns dumps into tasks, usually a CachedProcessor.
	Processor scheduler.DumpProcessor
	// Deliverer sends replies.
	Deliverer transport.Deliverer
	// AllowedUserID is the only sender whose messages are handled.
	AllowedUserID int64
}

// Resetter is a cache that can be emptied.
type Resetter interface {
	Reset()
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	synthesizer  tts.Synthesizer
	fallbackText bool
	listLimit    int
	logger       *DebugLogger
	clearCaches  []Resetter
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		fallbackText: true,
		listLimit:    DefaultListLimit,
	}
}

// WithSynthesizer enables voice replies. Without one every reply is text.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(o *orchestratorOptions) { o.synthesizer = s }
}

// WithTextFallback controls whether a reply whose synthesis failed is sent
// as text instead of being dropped.
func WithTextFallback(b bool) Option {
	return func(o *orchestratorOptions) { o.fallbackText = b }
}

// WithListLimit caps how many units /tasks reads out.
func WithListLimit(n int) Option {
	return func(o *orchestratorOptions) {
		if n > 0 {
			o.listLimit = n
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *orchestratorOptions) { o.logger = l }
}

// WithClearResets registers caches that /clear empties along with the store,
// so a repeated dump is processed again instead of answered from a cache
// that points at deleted tasks.
func WithClearResets(caches ...Resetter) Option {
	return func(o *orchestratorOptions) { o.clearCaches = append(o.clearCaches, caches...) }
}
