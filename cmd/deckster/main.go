package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/deckster/internal/config"
	"github.com/user/deckster/internal/state"
	"github.com/user/deckster/internal/types"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "deckster",
	Short:         "Terminal client for the Director presentation assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config, w io.Writer) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// openLogFile sends logs to <data_dir>/deckster.log for commands that own
// the terminal.
func openLogFile(cfg *config.Config) (*os.File, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.DataDir, "deckster.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// openStores builds the configured history backend and the user cache. The
// returned close func releases the backend.
func openStores(cfg *config.Config) (types.HistoryStore, *state.UserCache, func() error, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	cache := state.NewUserCache(cfg.DataDir)

	switch strings.ToLower(cfg.History.Backend) {
	case "", "jsonl":
		return state.NewHistoryLog(cfg.DataDir), cache, func() error { return nil }, nil
	case "sqlite":
		store, err := state.OpenSQLiteStore(cfg.SQLitePath())
		if err != nil {
			return nil, nil, nil, err
		}
		return store, cache, store.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown history backend %q (want jsonl or sqlite)", cfg.History.Backend)
	}
}
