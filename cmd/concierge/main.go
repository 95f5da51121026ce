package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/visionarydirector/concierge/internal/chat"
	"github.com/visionarydirector/concierge/internal/gateway"
	"github.com/visionarydirector/concierge/internal/handlers"
	"github.com/visionarydirector/concierge/internal/logging"
	"github.com/visionarydirector/concierge/internal/services"
	"github.com/visionarydirector/concierge/internal/waitlist"
)

var (
	configFlag string

	// Version is set at build time.
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Waitlist concierge of the Visionary Director landing page",
	Long: `concierge serves the Visionary Director landing page, with its chat concierge,
waitlist form and share button, and offers the same concierge in the terminal.

Examples:
  concierge serve                       Serve the landing page
  concierge chat                        Chat with the concierge in the terminal
  concierge waitlist join --name Ada --email ada@example.com
  concierge waitlist list               Show the recorded waitlist entries`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "concierge %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"Config file (default is <user config dir>/concierge/config.yaml)")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(waitlistCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger described by it. logFile, when not empty,
// replaces a config that logs to stderr.
func setup(logFile string) (config, *slog.Logger, error) {
	cfg, err := loadConfig(configFlag)
	if err != nil {
		return config{}, nil, err
	}

	if cfg.Log.File == "" {
		cfg.Log.File = logFile
	}
	logger, err := logging.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	return cfg, logger, nil
}

// newGatewayFactory returns the factory giving every chat surface its own gateway on the configured
// provider.
func newGatewayFactory(cfg config, logger *slog.Logger) (handlers.GatewayFactory, error) {
	provider, err := cfg.LLM.provider(logger)
	if err != nil {
		return nil, fmt.Errorf("error creating llm provider: %w", err)
	}
	persona, err := cfg.persona()
	if err != nil {
		return nil, err
	}

	return func() chat.Gateway {
		return gateway.New(provider, persona,
			gateway.WithLogger(logger),
			gateway.WithThinkingBudget(cfg.ThinkingBudget))
	}, nil
}

// newRecorder returns where accepted waitlist entries go, and a function releasing it.
func newRecorder(cfg config, logger *slog.Logger) (waitlist.Recorder, func() error, error) {
	switch cfg.Waitlist.Store {
	case "", waitlistStoreLog:
		return waitlist.LogRecorder{Logger: logger}, func() error { return nil }, nil
	case waitlistStoreBolt:
		db, err := openWaitlistDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown waitlist store: %s", cfg.Waitlist.Store)
	}
}

func openWaitlistDB(cfg config) (services.BoltDB, error) {
	dbPath, err := cfg.waitlistPath()
	if err != nil {
		return services.BoltDB{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return services.BoltDB{}, fmt.Errorf("error creating waitlist directory: %w", err)
	}
	db, err := services.NewBoltDB(dbPath)
	if err != nil {
		return services.BoltDB{}, fmt.Errorf("error opening waitlist store: %w", err)
	}
	return db, nil
}
