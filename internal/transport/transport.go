// Package transport moves messages between the chat service and the
// orchestrator.
//
// A Source yields batches of inbound updates, a Deliverer sends text or voice
// back to a chat, and a Poller runs the long-poll loop that feeds a Handler.
// Telegram implements both Source and Deliverer over the Bot API.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrTransport marks a failed fetch or delivery. The poll loop retries it
// after a fixed delay.
var ErrTransport = errors.New("transport failure")

// Message is one inbound chat message.
type Message struct {
	// ChatID is where replies go.
	ChatID int64
	// UserID identifies the sender.
	UserID int64
	Text   string
}

// Update is one item of a getUpdates batch. Message is nil for update kinds
// the bot does not handle (edits, callbacks, ...).
type Update struct {
	ID      int64
	Message *Message
}

// Source fetches pending updates starting at offset, waiting up to timeout
// for at least one to arrive.
type Source interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Deliverer sends replies to a chat.
type Deliverer interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVoice(ctx context.Context, chatID int64, audioPath string) error
}

// Handler consumes inbound messages.
type Handler interface {
	Handle(ctx context.Context, msg Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) { f(ctx, msg) }
