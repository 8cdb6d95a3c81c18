package transport

import (
	"context"
	"log"
	"runtime/debug"
	"time"
)

const (
	// DefaultPollTimeout is the server-side long-poll wait.
	DefaultPollTimeout = 30 * time.Second
	// DefaultIdleDelay is the pause after an empty batch.
	DefaultIdleDelay = time.Second
	// DefaultRetryDelay is the pause after a failed fetch.
	DefaultRetryDelay = 5 * time.Second
)

// Poller runs the long-poll loop: fetch a batch, dispatch each message in
// arrival order, repeat.
type Poller struct {
	src     Source
	handler Handler

	PollTimeout time.Duration
	IdleDelay   time.Duration
	RetryDelay  time.Duration

	offset int64
}

// NewPoller creates a Poller with the default delays.
func NewPoller(src Source, handler Handler) *Poller {
	return &Poller{
		src:         src,
		handler:     handler,
		PollTimeout: DefaultPollTimeout,
		IdleDelay:   DefaultIdleDelay,
		RetryDelay:  DefaultRetryDelay,
	}
}

// Offset returns the next update id the poller will ask for.
func (p *Poller) Offset() int64 {
	return p.offset
}

// Run polls until ctx is done and returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	log.Printf("[poller] started offset=%d", p.offset)
	defer log.Printf("[poller] stopped offset=%d", p.offset)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.src.GetUpdates(ctx, p.offset, p.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[poller] fetch failed, retrying in %s: %v", p.RetryDelay, err)
			if !sleep(ctx, p.RetryDelay) {
				return ctx.Err()
			}
			continue
		}

		for _, u := range updates {
			// The cursor moves past the update before it is handled, so a
			// crash mid-dispatch loses that message (at-most-once delivery).
			// At-least-once would need Execution inserts keyed by update id.
			p.offset = u.ID + 1
			if u.Message == nil {
				continue
			}
			p.dispatch(ctx, u)
		}

		if len(updates) == 0 && !sleep(ctx, p.IdleDelay) {
			return ctx.Err()
		}
	}
}

// dispatch hands one message to the handler. A panic is logged and swallowed
// so the loop keeps running.
func (p *Poller) dispatch(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[poller] handler panic update=%d: %v\n%s", u.ID, r, debug.Stack())
		}
	}()
	p.handler.Handle(ctx, *u.Message)
}

// sleep waits for d or until ctx is done. It reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
