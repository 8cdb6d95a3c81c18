package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewInputField(t *testing.T) {
	field := NewInputField()

	if field == nil {
		t.Fatal("NewInputField returned nil")
	}
	if field.width != 80 {
		t.Errorf("Default width = %d, want 80", field.width)
	}
}

func TestInputField_SetWidth(t *testing.T) {
	field := NewInputField()

	field.SetWidth(120)

	if field.width != 120 {
		t.Errorf("Width after SetWidth(120) = %d, want 120", field.width)
	}
	if field.input.Width != 116 {
		t.Errorf("Input width = %d, want 116", field.input.Width)
	}
}

func TestInputField_Update_Enter_EmptyInput(t *testing.T) {
	field := NewInputField()
	field.input.SetValue("   ")

	_, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank input should not be submitted")
	}
}

func TestInputField_Update_Enter_WithInput(t *testing.T) {
	field := NewInputField()
	field.input.SetValue("  /dump  ")

	updated, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a submit command")
	}

	msg, ok := cmd().(LineSubmittedMsg)
	if !ok {
		t.Fatalf("expected LineSubmittedMsg, got %T", cmd())
	}
	if msg.Text != "/dump" {
		t.Errorf("submitted %q, want %q", msg.Text, "/dump")
	}
	if updated.Value() != "" {
		t.Errorf("input should be cleared after submit, got %q", updated.Value())
	}
}

func TestInputField_View(t *testing.T) {
	field := NewInputField()

	if view := field.View(); !strings.Contains(view, ">") {
		t.Errorf("View should contain the prompt, got %q", view)
	}
}
