package tui

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/taskhunter/internal/transport"
)

// ConsoleChatID is the chat id used for console messages.
const ConsoleChatID int64 = 0

// maxTranscript bounds how many lines the console keeps.
const maxTranscript = 500

// handledMsg reports that the handler returned for a submitted line.
type handledMsg struct{}

type speaker int

const (
	speakerUser speaker = iota
	speakerBot
	speakerVoice
)

type line struct {
	at      time.Time
	speaker speaker
	text    string
}

var (
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true)
	voiceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	textStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// Console is a local chat with the orchestrator. Each submitted line is
// handed to the handler as a message from userID, and replies arrive as
// ReplyMsg through a Deliverer.
type Console struct {
	ctx        context.Context
	handler    transport.Handler
	userID     int64
	inputField *InputField
	spinner    spinner.Model
	lines      []line
	busy       bool
	width      int
	height     int
	quitting   bool
}

// NewConsole creates a console that sends lines to handler.
func NewConsole(ctx context.Context, handler transport.Handler, userID int64) *Console {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	return &Console{
		ctx:        ctx,
		handler:    handler,
		userID:     userID,
		inputField: NewInputField(),
		spinner:    sp,
		width:      80,
		height:     24,
	}
}

// Init implements tea.Model.
func (c *Console) Init() tea.Cmd {
	return c.inputField.Focus()
}

// Update implements tea.Model.
func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			c.quitting = true
			return c, tea.Quit
		}
		if c.busy && msg.Type == tea.KeyEnter {
			return c, nil
		}

	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.inputField.SetWidth(msg.Width)
		return c, nil

	case LineSubmittedMsg:
		c.append(speakerUser, msg.Text)
		c.busy = true
		return c, tea.Batch(c.handle(msg.Text), c.spinner.Tick)

	case handledMsg:
		c.busy = false
		return c, nil

	case ReplyMsg:
		if msg.AudioPath != "" {
			c.append(speakerVoice, msg.AudioPath)
		} else {
			c.append(speakerBot, msg.Text)
		}
		return c, nil

	case spinner.TickMsg:
		if !c.busy {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd
	}

	var cmd tea.Cmd
	c.inputField, cmd = c.inputField.Update(msg)
	return c, cmd
}

// handle runs the handler off the UI goroutine.
func (c *Console) handle(text string) tea.Cmd {
	return func() tea.Msg {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[tui] handler panic: %v\n%s", r, debug.Stack())
			}
		}()
		c.handler.Handle(c.ctx, transport.Message{
			ChatID: ConsoleChatID,
			UserID: c.userID,
			Text:   text,
		})
		return handledMsg{}
	}
}

func (c *Console) append(s speaker, text string) {
	c.lines = append(c.lines, line{at: time.Now(), speaker: s, text: text})
	if len(c.lines) > maxTranscript {
		c.lines = c.lines[len(c.lines)-maxTranscript:]
	}
}

// View implements tea.Model.
func (c *Console) View() string {
	if c.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("taskhunter console"))
	b.WriteString("  ")
	b.WriteString(hintStyle.Render("esc to quit"))
	b.WriteString("\n\n")

	// Header, blank line, input box and status line take roughly six rows.
	rows := c.height - 6
	if rows < 1 {
		rows = 1
	}
	rendered := c.renderLines()
	if len(rendered) > rows {
		rendered = rendered[len(rendered)-rows:]
	}
	b.WriteString(strings.Join(rendered, "\n"))
	b.WriteString("\n")

	b.WriteString(c.inputField.View())
	b.WriteString("\n")
	if c.busy {
		b.WriteString(c.spinner.View() + hintStyle.Render(" working..."))
	}
	return b.String()
}

func (c *Console) renderLines() []string {
	wrap := lipgloss.NewStyle().Width(max(c.width-14, 20))
	var out []string
	for _, l := range c.lines {
		var who string
		switch l.speaker {
		case speakerUser:
			who = userStyle.Render("you")
		case speakerBot:
			who = botStyle.Render("bot")
		case speakerVoice:
			who = voiceStyle.Render("voice")
		}
		text := l.text
		if l.speaker == speakerVoice {
			text = fmt.Sprintf("[audio] %s", l.text)
		}
		body := textStyle.Render(wrap.Render(text))
		head := fmt.Sprintf("%s %-5s ", timeStyle.Render(l.at.Format("15:04")), who)
		out = append(out, strings.Split(lipgloss.JoinHorizontal(lipgloss.Top, head, body), "\n")...)
	}
	return out
}

// Transcript returns the plain text of the conversation so far.
func (c *Console) Transcript() []string {
	out := make([]string, len(c.lines))
	for i, l := range c.lines {
		switch l.speaker {
		case speakerUser:
			out[i] = "you: " + l.text
		case speakerBot:
			out[i] = "bot: " + l.text
		case speakerVoice:
			out[i] = "voice: " + l.text
		}
	}
	return out
}

// NewConsoleProgram builds the console and its program. build receives the
// Deliverer that must be handed to the orchestrator and returns the handler
// that lines are sent to.
func NewConsoleProgram(ctx context.Context, build func(transport.Deliverer) transport.Handler, userID int64) (*tea.Program, *Console) {
	deliverer := &Deliverer{}
	console := NewConsole(ctx, build(deliverer), userID)
	program := tea.NewProgram(console, tea.WithAltScreen(), tea.WithContext(ctx))
	deliverer.Attach(program.Send)
	return program, console
}
