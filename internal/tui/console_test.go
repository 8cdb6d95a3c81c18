package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/taskhunter/internal/transport"
)

type recordingHandler struct {
	mu   sync.Mutex
	msgs []transport.Message
	fn   func(transport.Message)
}

func (h *recordingHandler) Handle(ctx context.Context, msg transport.Message) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	if h.fn != nil {
		h.fn(msg)
	}
}

func TestConsole_Init(t *testing.T) {
	c := NewConsole(context.Background(), &recordingHandler{}, 7)

	if cmd := c.Init(); cmd == nil {
		t.Error("Init should return a command to focus the input")
	}
}

func TestConsole_SubmitRunsHandler(t *testing.T) {
	h := &recordingHandler{}
	c := NewConsole(context.Background(), h, 42)

	_, cmd := c.Update(LineSubmittedMsg{Text: "/tasks"})
	if !c.busy {
		t.Error("console should be busy while the line is handled")
	}
	if cmd == nil {
		t.Fatal("expected a handler command")
	}

	// Run the handler directly rather than through the batch.
	if _, ok := c.handle("/tasks")().(handledMsg); !ok {
		t.Error("handler command should report handledMsg")
	}
	if len(h.msgs) != 1 {
		t.Fatalf("handler called %d times, want 1", len(h.msgs))
	}
	got := h.msgs[0]
	if got.UserID != 42 || got.ChatID != ConsoleChatID || got.Text != "/tasks" {
		t.Errorf("unexpected message %+v", got)
	}

	c.Update(handledMsg{})
	if c.busy {
		t.Error("console should be idle after handledMsg")
	}
}

func TestConsole_HandlerPanicRecovered(t *testing.T) {
	h := &recordingHandler{fn: func(transport.Message) { panic("boom") }}
	c := NewConsole(context.Background(), h, 1)

	msg := c.handle("/dump")()
	if msg != nil {
		t.Errorf("panicking handler should yield nil msg, got %T", msg)
	}
}

func TestConsole_Transcript(t *testing.T) {
	c := NewConsole(context.Background(), &recordingHandler{}, 1)

	c.Update(LineSubmittedMsg{Text: "/dump"})
	c.Update(ReplyMsg{Text: "Listening for tasks."})
	c.Update(ReplyMsg{AudioPath: "/media/abc.mp3"})

	want := []string{"you: /dump", "bot: Listening for tasks.", "voice: /media/abc.mp3"}
	got := c.Transcript()
	if len(got) != len(want) {
		t.Fatalf("transcript = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConsole_TranscriptBounded(t *testing.T) {
	c := NewConsole(context.Background(), &recordingHandler{}, 1)

	for i := 0; i < maxTranscript+10; i++ {
		c.Update(ReplyMsg{Text: "x"})
	}
	if n := len(c.Transcript()); n != maxTranscript {
		t.Errorf("transcript length = %d, want %d", n, maxTranscript)
	}
}

func TestConsole_EnterIgnoredWhileBusy(t *testing.T) {
	c := NewConsole(context.Background(), &recordingHandler{}, 1)
	c.busy = true
	c.inputField.input.SetValue("/done")

	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("enter should be ignored while busy")
	}
	if c.inputField.Value() != "/done" {
		t.Error("input should be kept while busy")
	}
}

func TestConsole_Quit(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConsole(context.Background(), &recordingHandler{}, 1)
			_, cmd := c.Update(tt.key)
			if cmd == nil {
				t.Fatal("expected quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("expected tea.QuitMsg")
			}
			if c.View() != "" {
				t.Error("view should be empty after quitting")
			}
		})
	}
}

func TestConsole_WindowSize(t *testing.T) {
	c := NewConsole(context.Background(), &recordingHandler{}, 1)

	c.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if c.width != 100 || c.height != 30 {
		t.Errorf("size = %dx%d, want 100x30", c.width, c.height)
	}
	if c.inputField.width != 100 {
		t.Errorf("input width = %d, want 100", c.inputField.width)
	}
}

func TestConsole_View(t *testing.T) {
	c := NewConsole(context.Background(), &recordingHandler{}, 1)
	c.Update(ReplyMsg{Text: "Next task. ID 3. buy milk."})

	view := c.View()
	if !strings.Contains(view, "taskhunter console") {
		t.Error("view should contain the title")
	}
	if !strings.Contains(view, "buy milk") {
		t.Error("view should contain the reply")
	}
}

func TestDeliverer(t *testing.T) {
	d := &Deliverer{}

	// Unattached replies are dropped without error.
	if err := d.SendText(context.Background(), 1, "lost"); err != nil {
		t.Errorf("SendText before Attach = %v", err)
	}

	var got []tea.Msg
	d.Attach(func(m tea.Msg) { got = append(got, m) })

	if err := d.SendText(context.Background(), 1, "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if err := d.SendVoice(context.Background(), 1, "/tmp/a.mp3"); err != nil {
		t.Fatalf("SendVoice: %v", err)
	}

	want := []ReplyMsg{{Text: "hello"}, {AudioPath: "/tmp/a.mp3"}}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("msg %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNewConsoleProgram(t *testing.T) {
	var delivered transport.Deliverer
	program, console := NewConsoleProgram(context.Background(), func(d transport.Deliverer) transport.Handler {
		delivered = d
		return &recordingHandler{}
	}, 5)

	if program == nil || console == nil {
		t.Fatal("NewConsoleProgram returned nil")
	}
	if delivered == nil {
		t.Fatal("build should receive a deliverer")
	}
	if console.userID != 5 {
		t.Errorf("userID = %d, want 5", console.userID)
	}
}
