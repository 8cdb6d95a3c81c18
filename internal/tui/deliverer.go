package tui

import (
	"context"
	"log"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/taskhunter/internal/transport"
)

// ReplyMsg carries one orchestrator reply into the console.
type ReplyMsg struct {
	Text string
	// AudioPath is set for voice replies.
	AudioPath string
}

// Deliverer posts orchestrator replies to a running console program.
// Replies sent before Attach are logged and dropped.
type Deliverer struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

var _ transport.Deliverer = (*Deliverer)(nil)

// Attach routes replies to send, usually (*tea.Program).Send.
func (d *Deliverer) Attach(send func(tea.Msg)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.send = send
}

func (d *Deliverer) post(msg ReplyMsg) {
	d.mu.Lock()
	send := d.send
	d.mu.Unlock()
	if send == nil {
		log.Printf("[tui] reply dropped, console not attached: %+v", msg)
		return
	}
	send(msg)
}

// SendText shows text in the transcript.
func (d *Deliverer) SendText(ctx context.Context, chatID int64, text string) error {
	d.post(ReplyMsg{Text: text})
	return nil
}

// SendVoice shows the audio file path in the transcript.
func (d *Deliverer) SendVoice(ctx context.Context, chatID int64, audioPath string) error {
	d.post(ReplyMsg{AudioPath: audioPath})
	return nil
}
