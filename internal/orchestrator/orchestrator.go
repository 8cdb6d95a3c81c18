package orchestrator

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/ShayCichocki/taskhunter/internal/scheduler"
	"github.com/ShayCichocki/taskhunter/internal/transport"
	"github.com/ShayCichocki/taskhunter/internal/tts"
	"github.com/ShayCichocki/taskhunter/pkg/models"
)

// State is a user's position in the conversation.
type State string

const (
	StateIdle         State = "idle"
	StateAwaitingDump State = "awaiting_dump"
	StateAwaitingText State = "awaiting_freeform_text"
)

// DefaultListLimit caps the /tasks read-out.
const DefaultListLimit = 20

// Orchestrator routes chat messages to the scheduler and speaks the replies.
// It handles one message at a time.
type Orchestrator struct {
	sched     *scheduler.Scheduler
	processor scheduler.DumpProcessor
	deliverer transport.Deliverer
	allowed   int64

	synth        tts.Synthesizer
	fallbackText bool
	listLimit    int
	logger       *DebugLogger
	clearCaches  []Resetter

	mu     sync.Mutex
	states map[int64]State
}

// New creates an Orchestrator.
func New(required RequiredConfig, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator{
		sched:        required.Scheduler,
		processor:    required.Processor,
		deliverer:    required.Deliverer,
		allowed:      required.AllowedUserID,
		synth:        o.synthesizer,
		fallbackText: o.fallbackText,
		listLimit:    o.listLimit,
		logger:       o.logger,
		clearCaches:  o.clearCaches,
		states:       make(map[int64]State),
	}
}

var _ transport.Handler = (*Orchestrator)(nil)

// State returns the conversation state of userID.
func (o *Orchestrator) State(userID int64) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateOf(userID)
}

func (o *Orchestrator) stateOf(userID int64) State {
	if s, ok := o.states[userID]; ok {
		return s
	}
	return StateIdle
}

func (o *Orchestrator) setState(userID int64, s State) {
	o.logger.Log("[orchestrator] user=%d state %s -> %s", userID, o.stateOf(userID), s)
	if s == StateIdle {
		delete(o.states, userID)
		return
	}
	o.states[userID] = s
}

// Handle processes one inbound message. Replies go out through the
// Deliverer; nothing is returned.
func (o *Orchestrator) Handle(ctx context.Context, msg transport.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if msg.UserID != o.allowed {
		o.logger.Log("[orchestrator] dropped message from unauthorized user=%d", msg.UserID)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch o.stateOf(msg.UserID) {
	case StateAwaitingDump:
		o.processDump(ctx, msg.ChatID, msg.UserID, text)
		return
	case StateAwaitingText:
		o.speakFreeform(ctx, msg.ChatID, msg.UserID, text)
		return
	}

	if !strings.HasPrefix(text, "/") {
		o.say(ctx, msg.ChatID, helpText)
		return
	}

	command, args := splitCommand(text)
	log.Printf("[orchestrator] command=%s user=%d", command, msg.UserID)

	switch command {
	case "/start":
		o.say(ctx, msg.ChatID, greetingText)
	case "/help":
		o.say(ctx, msg.ChatID, helpText)
	case "/dump":
		o.setState(msg.UserID, StateAwaitingDump)
		o.say(ctx, msg.ChatID, "Send me your task dump.")
	case "/tts", "/say":
		if args != "" {
			o.say(ctx, msg.ChatID, args)
			return
		}
		o.setState(msg.UserID, StateAwaitingText)
		o.say(ctx, msg.ChatID, "Send me the text to speak.")
	case "/tasks":
		o.listTasks(ctx, msg.ChatID)
	case "/task":
		o.nextTasks(ctx, msg.ChatID, args)
	case "/done":
		o.completeTop(ctx, msg.ChatID)
	case "/skip":
		o.skipTop(ctx, msg.ChatID)
	case "/begin":
		o.begin(ctx, msg.ChatID, args)
	case "/delete":
		o.deleteUnit(ctx, msg.ChatID, args)
	case "/transcribe":
		if args == "" {
			o.say(ctx, msg.ChatID, "Please provide text to transcribe.")
			return
		}
		o.say(ctx, msg.ChatID, args)
	case "/status":
		o.status(ctx, msg.ChatID)
	case "/clear":
		o.clear(ctx, msg.ChatID)
	default:
		o.say(ctx, msg.ChatID, helpText)
	}
}

// splitCommand lower-cases the command word, drops a trailing @botname, and
// returns the rest of the text as args.
func splitCommand(text string) (command, args string) {
	command, args, _ = strings.Cut(text, " ")
	command = strings.ToLower(command)
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	return command, strings.TrimSpace(args)
}

// processDump runs a dump through the processor. The user is back to idle
// afterwards whatever happens.
func (o *Orchestrator) processDump(ctx context.Context, chatID, userID int64, text string) {
	defer o.setState(userID, StateIdle)

	if text == "" {
		o.say(ctx, chatID, "No tasks could be extracted from your input.")
		return
	}

	o.say(ctx, chatID, "Processing tasks.")
	result, err := o.processor.Process(ctx, text)
	if err != nil {
		log.Printf("[orchestrator] process dump user=%d content=%q: %v", userID, models.Preview(text), err)
		if result == nil || result.NewTasks == 0 {
			o.say(ctx, chatID, "Error processing tasks.")
			return
		}
	}
	if result == nil || result.NewTasks == 0 {
		o.say(ctx, chatID, "No tasks could be extracted from your input.")
		return
	}
	o.say(ctx, chatID, createdText(result))
}

// speakFreeform synthesizes text as given and returns the user to idle.
func (o *Orchestrator) speakFreeform(ctx context.Context, chatID, userID int64, text string) {
	defer o.setState(userID, StateIdle)
	if text == "" {
		o.say(ctx, chatID, "Nothing to speak.")
		return
	}
	o.say(ctx, chatID, text)
}
