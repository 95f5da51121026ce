package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/visionarydirector/concierge/internal/models"
	"github.com/visionarydirector/concierge/internal/waitlist"
)

var (
	nameFlag  string
	emailFlag string
)

var waitlistCmd = &cobra.Command{
	Use:   "waitlist",
	Short: "Manage the waitlist",
}

var waitlistJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Put someone on the waitlist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup("")
		if err != nil {
			return err
		}
		recorder, closeRecorder, err := newRecorder(cfg, logger)
		if err != nil {
			return err
		}
		defer closeRecorder()

		return joinWaitlist(cmd.Context(), cmd.OutOrStdout(),
			waitlist.NewForm(recorder, waitlist.WithDelay(cfg.Waitlist.Delay), waitlist.WithLogger(logger)),
			nameFlag, emailFlag)
	},
}

var waitlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the recorded waitlist entries",
	Long: `Show the waitlist entries recorded in the bolt store, oldest first.
Entries are only recorded when the waitlist store is set to "bolt".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := setup("")
		if err != nil {
			return err
		}
		db, err := openWaitlistDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.Entries(cmd.Context())
		if err != nil {
			return err
		}
		return printEntries(cmd.OutOrStdout(), entries)
	},
}

func init() {
	waitlistJoinCmd.Flags().StringVar(&nameFlag, "name", "", "Full name")
	waitlistJoinCmd.Flags().StringVar(&emailFlag, "email", "", "Email address")

	waitlistCmd.AddCommand(waitlistJoinCmd)
	waitlistCmd.AddCommand(waitlistListCmd)
}

// joinWaitlist submits one entry through form and waits for the form to report success.
func joinWaitlist(ctx context.Context, out io.Writer, form *waitlist.Form, name, email string) error {
	defer form.Close()

	if !form.Submit(name, email) {
		return errors.New("name and email are required")
	}
	fmt.Fprintln(out, "Securing Spot...")

	select {
	case <-form.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintln(out, "You're on the list! We'll be in touch with your early access invitation.")
	return nil
}

func printEntries(out io.Writer, entries []models.WaitlistEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "The waitlist is empty.")
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Name, e.Email, e.SubmittedAt.Local().Format(time.DateTime)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("NAME", "EMAIL", "SUBMITTED").
		Rows(rows...)

	_, err := fmt.Fprintln(out, t.Render())
	return err
}
