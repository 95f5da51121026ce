package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/models"
)

// Surface is the part of the chat surface the terminal client drives.
type Surface interface {
	Messages() []models.Message
	Suggestions() []string
	Submit(text string) (chat.Exchange, error)
	SubmitSuggestion(i int) (chat.Exchange, error)
	Share(ctx context.Context) error
}

// Message types for the TUI
type (
	// updateMsg carries a change of the chat surface into the program.
	updateMsg chat.Update
	// copiedMsg reports the "link copied" confirmation going up or down.
	copiedMsg bool
	submitErrMsg struct {
		err error
	}
	shareErrMsg struct {
		err error
	}
)

const (
	unavailableNotice = "The concierge is unavailable right now. Please try again."
	emptyReplyText    = "No reply received."
	modelLabel        = "✦ Visionary Director"
	userLabel         = "⬤ You"

	headerHeight      = 3
	suggestionsHeight = 1
	inputHeight       = 3
	statusHeight      = 1
)

var suggestionKeys = []string{"f1", "f2", "f3"}

// Model is the bubbletea model of the terminal chat.
type Model struct {
	surface Surface

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	status models.ChatStatus
	notice string
	copied bool
	ready  bool

	width  int
	height int
}

// NewModel creates the chat model driving surface.
func NewModel(surface Surface) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about our AI solutions..."
	ti.CharLimit = 2000
	ti.Prompt = "› "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorAccent)
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPrimary)

	return Model{
		surface: surface,
		input:   ti,
		spinner: s,
		status:  models.ChatStatusIdle,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch k := msg.String(); k {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "ctrl+s":
			return m, m.share()

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.status.Busy() {
				return m, nil
			}
			if text == "exit" || text == "quit" || text == "/exit" || text == "/quit" {
				return m, tea.Quit
			}
			m.input.Reset()
			return m, m.submit(func() (chat.Exchange, error) { return m.surface.Submit(text) })

		default:
			if i := suggestionIndex(k); i >= 0 {
				if m.status.Busy() {
					return m, nil
				}
				return m, m.submit(func() (chat.Exchange, error) { return m.surface.SubmitSuggestion(i) })
			}
		}

	case updateMsg:
		m.status = msg.Status
		switch {
		case msg.Err != nil:
			m.notice = unavailableNotice
		case msg.Status == models.ChatStatusAwaitingResponse:
			m.notice = ""
		}
		m.refresh()
		if m.status.Busy() {
			cmds = append(cmds, m.spinner.Tick)
		}

	case copiedMsg:
		m.copied = bool(msg)

	case submitErrMsg:
		if !errors.Is(msg.err, chat.ErrBusy) && !errors.Is(msg.err, chat.ErrEmptyMessage) {
			m.notice = msg.err.Error()
		}

	case shareErrMsg:
		m.notice = fmt.Sprintf("Share failed: %v", msg.err)

	case spinner.TickMsg:
		if m.status.Busy() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
			m.refresh()
		}
	}

	// Only pass KeyMsg to the input to keep stray escape sequences out of it
	if _, ok := msg.(tea.KeyMsg); ok {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return subtitleStyle.Render("  Initializing...")
	}

	contentWidth := m.width - 2
	sections := []string{
		headerStyle.Width(contentWidth).Render(m.renderHeader()),
		messagesAreaStyle.Width(contentWidth).Height(m.viewport.Height).Render(m.viewport.View()),
		m.renderSuggestions(),
		inputPanelStyle.Width(contentWidth).Render(m.input.View()),
		m.renderStatusBar(),
	}
	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	vpHeight := max(height-headerHeight-suggestionsHeight-inputHeight-statusHeight-4, 5)
	vpWidth := max(width-6, 20)

	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		// Letters belong to the input, the conversation only scrolls with the arrow and page keys
		m.viewport.KeyMap = viewport.KeyMap{
			PageDown: key.NewBinding(key.WithKeys("pgdown")),
			PageUp:   key.NewBinding(key.WithKeys("pgup")),
			Up:       key.NewBinding(key.WithKeys("up")),
			Down:     key.NewBinding(key.WithKeys("down")),
		}
		m.ready = true
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
	}
	m.input.Width = vpWidth - 4

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(vpWidth-4),
	)
	if err == nil {
		m.renderer = renderer
	}
	m.refresh()
}

// refresh rebuilds the conversation shown in the viewport from the surface.
func (m *Model) refresh() {
	if !m.ready {
		return
	}

	msgs := m.surface.Messages()
	var content strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			content.WriteString("\n")
		}
		if msg.Role == models.RoleUser {
			content.WriteString(userLabelStyle.Render(userLabel) + "\n")
			content.WriteString(userBubbleStyle.Width(m.viewport.Width-2).Render(msg.Content) + "\n")
			continue
		}

		content.WriteString(modelLabelStyle.Render(modelLabel) + "\n")
		last := i == len(msgs)-1
		switch {
		case msg.Content != "":
			content.WriteString(m.renderMarkdown(msg.Content))
		case last && m.status.Busy():
			content.WriteString(pendingStyle.Render(m.spinner.View()+" Thinking...") + "\n")
		default:
			content.WriteString(pendingStyle.Render(emptyReplyText) + "\n")
		}
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return userBubbleStyle.Render(text) + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return userBubbleStyle.Render(text) + "\n"
	}
	return out
}

func (m Model) renderHeader() string {
	var label string
	switch m.status {
	case models.ChatStatusAwaitingResponse:
		label = "Thinking..."
	case models.ChatStatusStreaming:
		label = "Typing..."
	case models.ChatStatusError:
		label = "Offline"
	default:
		label = "Online"
	}

	parts := []string{
		titleStyle.Render("Visionary Director"),
		subtitleStyle.Render("  •  "),
		statusStyle(m.status.Busy(), m.status == models.ChatStatusError).Render("● " + label),
	}
	if m.copied {
		parts = append(parts, subtitleStyle.Render("  •  "), copiedStyle.Render("Link copied!"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

func (m Model) renderSuggestions() string {
	var items []string
	for i, s := range m.surface.Suggestions() {
		if i >= len(suggestionKeys) {
			break
		}
		items = append(items, suggestionKeyStyle.Render(strings.ToUpper(suggestionKeys[i]))+" "+suggestionStyle.Render(s))
	}
	return strings.Join(items, "   ")
}

func (m Model) renderStatusBar() string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"F1-F3", "Suggest"},
		{"Ctrl+S", "Share"},
		{"Esc", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusBarStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Render(strings.Join(items, statusBarStyle.Render("  │  ")))
}

// submit runs fn outside of the update loop, since the surface notifies its listeners, and with them
// the program, before it returns.
func (m Model) submit(fn func() (chat.Exchange, error)) tea.Cmd {
	return func() tea.Msg {
		if _, err := fn(); err != nil {
			return submitErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) share() tea.Cmd {
	surface := m.surface
	return func() tea.Msg {
		if err := surface.Share(context.Background()); err != nil {
			return shareErrMsg{err: err}
		}
		return nil
	}
}

func suggestionIndex(key string) int {
	for i, k := range suggestionKeys {
		if k == key {
			return i
		}
	}
	return -1
}
