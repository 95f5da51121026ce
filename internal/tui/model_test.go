package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/models"
)

type fakeSurface struct {
	mu          sync.Mutex
	messages    []models.Message
	submitted   []string
	suggestions []int
	shares      int
	submitErr   error
	shareErr    error
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{messages: []models.Message{models.WelcomeMessage()}}
}

func (f *fakeSurface) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]models.Message(nil), f.messages...)
}

func (f *fakeSurface) Suggestions() []string {
	return chat.Suggestions
}

func (f *fakeSurface) Submit(text string) (chat.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return chat.Exchange{}, f.submitErr
	}
	f.submitted = append(f.submitted, text)
	return chat.Exchange{}, nil
}

func (f *fakeSurface) SubmitSuggestion(i int) (chat.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.suggestions = append(f.suggestions, i)
	return chat.Exchange{}, nil
}

func (f *fakeSurface) Share(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.shares++
	return f.shareErr
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T, want Model", next)
	}
	return model, cmd
}

func readyModel(t *testing.T, surface Surface) Model {
	t.Helper()

	m, _ := update(t, NewModel(surface), tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func TestViewBeforeResize(t *testing.T) {
	m := NewModel(newFakeSurface())

	if got := m.View(); !strings.Contains(got, "Initializing") {
		t.Errorf("View() = %q, want initializing notice", got)
	}
}

func TestView(t *testing.T) {
	m := readyModel(t, newFakeSurface())
	view := m.View()

	for _, want := range []string{"Visionary Director", "Online", "F1", chat.Suggestions[0], "Ctrl+S"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() does not contain %q", want)
		}
	}
	if !strings.Contains(m.viewport.View(), "Gemini") {
		t.Error("conversation does not show the welcome message")
	}
}

func TestEnterSubmits(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		busy       bool
		wantSubmit []string
		wantQuit   bool
	}{
		{name: "message", input: "  Hello  ", wantSubmit: []string{"Hello"}},
		{name: "blank", input: "   "},
		{name: "busy", input: "Hello", busy: true},
		{name: "exit", input: "exit", wantQuit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := newFakeSurface()
			m := readyModel(t, surface)
			if tt.busy {
				m, _ = update(t, m, updateMsg{Status: models.ChatStatusAwaitingResponse})
			}
			m.input.SetValue(tt.input)

			m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
			var msg tea.Msg
			if cmd != nil {
				msg = cmd()
			}

			if _, quit := msg.(tea.QuitMsg); quit != tt.wantQuit {
				t.Errorf("quit = %v, want %v", quit, tt.wantQuit)
			}
			if strings.Join(surface.submitted, "|") != strings.Join(tt.wantSubmit, "|") {
				t.Errorf("submitted = %q, want %q", surface.submitted, tt.wantSubmit)
			}
			if len(tt.wantSubmit) > 0 && m.input.Value() != "" {
				t.Errorf("input = %q, want it cleared after sending", m.input.Value())
			}
		})
	}
}

func TestSuggestionKeys(t *testing.T) {
	surface := newFakeSurface()
	m := readyModel(t, surface)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyF2})
	if cmd == nil {
		t.Fatal("F2 returned no command")
	}
	cmd()

	if len(surface.suggestions) != 1 || surface.suggestions[0] != 1 {
		t.Errorf("suggestions = %v, want [1]", surface.suggestions)
	}
}

func TestSurfaceUpdates(t *testing.T) {
	surface := newFakeSurface()
	m := readyModel(t, surface)

	surface.messages = append(surface.messages,
		models.Message{ID: "u1", Role: models.RoleUser, Content: "Hello"},
		models.Message{ID: "m1", Role: models.RoleModel},
	)
	m, _ = update(t, m, updateMsg{Status: models.ChatStatusAwaitingResponse})
	if !strings.Contains(m.View(), "Thinking...") {
		t.Error("View() does not show the thinking state")
	}

	surface.messages[2].Content = "A **bold** move"
	m, _ = update(t, m, updateMsg{Status: models.ChatStatusStreaming, Message: &surface.messages[2]})
	if !strings.Contains(m.View(), "Typing...") {
		t.Error("View() does not show the typing state")
	}
	if !strings.Contains(m.viewport.View(), "bold") {
		t.Error("conversation does not show the streamed reply")
	}

	m, _ = update(t, m, updateMsg{Status: models.ChatStatusIdle})
	if !strings.Contains(m.View(), "Online") {
		t.Error("View() does not show the idle state after the reply")
	}
}

func TestSurfaceUpdateFailure(t *testing.T) {
	surface := newFakeSurface()
	m := readyModel(t, surface)

	surface.messages = append(surface.messages,
		models.Message{ID: "u1", Role: models.RoleUser, Content: "Hello"},
		models.Message{ID: "m1", Role: models.RoleModel},
	)
	m, _ = update(t, m, updateMsg{Status: models.ChatStatusAwaitingResponse})
	m, _ = update(t, m, updateMsg{Status: models.ChatStatusError, Err: errors.New("missing key")})

	view := m.View()
	for _, want := range []string{"Offline", unavailableNotice, emptyReplyText} {
		if !strings.Contains(view, want) {
			t.Errorf("View() does not contain %q", want)
		}
	}

	m, _ = update(t, m, updateMsg{Status: models.ChatStatusAwaitingResponse})
	if m.notice != "" {
		t.Errorf("notice = %q, want it cleared by the next exchange", m.notice)
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantNotice bool
	}{
		{name: "busy", err: chat.ErrBusy},
		{name: "empty", err: chat.ErrEmptyMessage},
		{name: "closed", err: chat.ErrClosed, wantNotice: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := readyModel(t, newFakeSurface())
			m, _ = update(t, m, submitErrMsg{err: tt.err})
			if (m.notice != "") != tt.wantNotice {
				t.Errorf("notice = %q, wantNotice %v", m.notice, tt.wantNotice)
			}
		})
	}
}

func TestShare(t *testing.T) {
	surface := newFakeSurface()
	m := readyModel(t, surface)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatal("ctrl+s returned no command")
	}
	if msg := cmd(); msg != nil {
		t.Errorf("share command = %v, want nil", msg)
	}
	if surface.shares != 1 {
		t.Errorf("shares = %d, want 1", surface.shares)
	}

	m, _ = update(t, m, copiedMsg(true))
	if !strings.Contains(m.View(), "Link copied!") {
		t.Error("View() does not show the copy confirmation")
	}
	m, _ = update(t, m, copiedMsg(false))
	if strings.Contains(m.View(), "Link copied!") {
		t.Error("View() still shows the copy confirmation")
	}

	surface.shareErr = chat.ErrShareUnavailable
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	msg := cmd()
	if _, ok := msg.(shareErrMsg); !ok {
		t.Fatalf("share command = %T, want shareErrMsg", msg)
	}
	m, _ = update(t, m, msg)
	if !strings.Contains(m.notice, "Share failed") {
		t.Errorf("notice = %q, want share failure", m.notice)
	}
}
