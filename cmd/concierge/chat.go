package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/visionarydirector/concierge/internal/logging"
	"github.com/visionarydirector/concierge/internal/models"
	"github.com/visionarydirector/concierge/internal/share"
	"github.com/visionarydirector/concierge/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the concierge in the terminal",
	Long: `Start an interactive chat with the concierge.

The chat keeps its context across messages. F1 to F3 send the suggested
questions, Ctrl+S copies the landing page address to the clipboard.
Type 'exit', 'quit', or press Esc to end the session.

Logs go to a file while the chat owns the terminal.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runChat()
	},
}

func runChat() error {
	cfg, logger, err := setup(logging.DefaultFile())
	if err != nil {
		return err
	}

	gateways, err := newGatewayFactory(cfg, logger)
	if err != nil {
		return err
	}

	return tui.Run(tui.Config{
		Gateway:   gateways(),
		ShareData: models.DefaultShareData(cfg.ShareURL),
		Clipboard: share.TerminalDefault(os.Stderr),
		Logger:    logger,
	})
}
