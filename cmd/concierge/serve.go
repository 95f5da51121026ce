package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/visionarydirector/concierge"
	"github.com/visionarydirector/concierge/internal/handlers"
)

var portFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the landing page",
	Long: `Serve the Visionary Director landing page with its chat concierge.

Every page view gets its own conversation with the configured model. A missing
credential does not prevent the page from being served: the chat reports the
concierge as unavailable instead.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Port to listen on (overrides the config file)")
}

func runServe() error {
	cfg, logger, err := setup("")
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Port = portFlag
	}

	gateways, err := newGatewayFactory(cfg, logger)
	if err != nil {
		return err
	}

	recorder, closeRecorder, err := newRecorder(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRecorder(); err != nil {
			logger.Error("Failed to close waitlist store", slog.String("err", err.Error()))
		}
	}()

	m, err := handlers.NewMain(gateways, recorder,
		handlers.WithLogger(logger),
		handlers.WithViewTTL(cfg.ViewTTL),
		handlers.WithWaitlistDelay(cfg.Waitlist.Delay),
		handlers.WithShareURL(cfg.ShareURL))
	if err != nil {
		return fmt.Errorf("error creating handlers: %w", err)
	}

	// Serve static files
	staticFS, err := fs.Sub(concierge.StaticFS, "static")
	if err != nil {
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/sse", m.HandleSSE)
	mux.HandleFunc("/waitlist", m.HandleWaitlist)
	mux.HandleFunc("/share", m.HandleShare)
	mux.HandleFunc("/healthz", m.HandleHealthz)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.LogRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				return fmt.Errorf("forcing server close: %w", err)
			}
		}
	}
	return nil
}
