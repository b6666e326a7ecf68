// Package cli implements the bqldb command: a non-interactive runner for
// BQL scripts and one-shot queries.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferlab/bqldb/internal/config"
	"github.com/inferlab/bqldb/pkg/backend/gauss"
	"github.com/inferlab/bqldb/pkg/bql"
)

var (
	flagDB       string
	flagConfig   string
	flagLogLevel string
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bqldb",
		Short:         "Bayesian Query Language database",
		Long:          "bqldb runs BQL — an SQL superset with probabilistic queries — against an embedded database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDB, "db", "bql.db", "database file (\":memory:\" for transient)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "optional bqldb.yaml config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newRunCmd())
	root.AddCommand(newQueryCmd())
	return root
}

// openDB opens the configured database with the built-in backends
// registered.
func openDB() (*bql.BDB, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	b, err := bql.Open(flagDB, bql.WithLogger(logger), bql.WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := b.RegisterBackend(gauss.New()); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
