package tui

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/models"
	"github.com/visionarydirector/concierge/internal/share"
)

// Config configures a terminal chat.
type Config struct {
	Gateway   chat.Gateway
	ShareData models.ShareData
	Clipboard share.Clipboard
	Logger    *slog.Logger
}

// Run starts an interactive chat on cfg.Gateway and blocks until the user quits.
func Run(cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var p *tea.Program
	send := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}

	action := share.NewAction(cfg.ShareData, cfg.Clipboard,
		share.WithCopiedHook(func(copied bool) { send(copiedMsg(copied)) }))

	surface, err := chat.New(cfg.Gateway, chat.WithLogger(logger), chat.WithSharer(action))
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	defer surface.Close()

	surface.Listen(func(u chat.Update) { send(updateMsg(u)) })

	p = tea.NewProgram(NewModel(surface), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat ended with error: %w", err)
	}
	return nil
}
