package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/deckster/internal/export"
	"github.com/user/deckster/internal/reconcile"
	"github.com/user/deckster/internal/session"
	"github.com/user/deckster/internal/types"
)

var (
	transcriptFormat string
	transcriptStats  bool
	replayFormat     string
	replayCache      string
	replaySession    string
	replayAnswered   []string
)

func init() {
	transcriptCmd.Flags().StringVarP(&transcriptFormat, "format", "f", "text", "output format: text, md, json, jsonl, yaml")
	transcriptCmd.Flags().BoolVar(&transcriptStats, "stats", false, "print reconciliation counts to stderr")
	replayCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "output format: text, md, json, jsonl, yaml")
	replayCmd.Flags().StringVar(&replayCache, "cache", "", "user-message cache file (JSON array)")
	replayCmd.Flags().StringVar(&replaySession, "session", "", "session id (defaults to the first event's)")
	replayCmd.Flags().StringSliceVar(&replayAnswered, "answered", nil, "action request ids to treat as answered")
	rootCmd.AddCommand(transcriptCmd, replayCmd)
}

var transcriptCmd = &cobra.Command{
	Use:   "transcript <session-id>",
	Short: "Print the reconciled transcript of a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg, os.Stderr)

		exp, err := export.NewExporter(transcriptFormat)
		if err != nil {
			return err
		}
		history, cache, closeStores, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		id := types.SessionID(args[0])
		res, err := session.Snapshot(context.Background(), id, session.Deps{Cache: cache, History: history},
			session.WithWelcomePatterns(cfg.Welcome.Patterns))
		if err != nil {
			return fmt.Errorf("load session %s: %w", id, err)
		}
		if len(res.Items) == 0 {
			return fmt.Errorf("session not found: %s", id)
		}
		if transcriptStats {
			printStats(res.Stats)
		}
		return exp.Export(export.NewTranscript(id, res), os.Stdout)
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <events.jsonl>",
	Short: "Reconcile a captured Director event stream offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg, os.Stderr)

		exp, err := export.NewExporter(replayFormat)
		if err != nil {
			return err
		}
		capture, err := loadCapture(args[0], replayCache)
		if err != nil {
			return err
		}
		id := types.SessionID(replaySession)
		if id == "" {
			id = capture.sessionID()
		}

		res := replay(id, capture, replayAnswered, cfg.Welcome.Patterns)
		printStats(res.Stats)
		return exp.Export(export.NewTranscript(id, res), os.Stdout)
	},
}

// replay runs one reconciliation pass over a capture, treating every event
// as live.
func replay(id types.SessionID, c *capture, answered []string, welcome []string) *reconcile.Result {
	rctx := reconcile.NewContext(id)
	for _, a := range answered {
		rctx.Answered().MarkAnswered(types.MessageID(a))
	}
	engine := reconcile.NewEngine(rctx, reconcile.WithWelcomePatterns(welcome))
	return engine.Reconcile(reconcile.Inputs{UserMessages: c.users, Live: c.events})
}

func printStats(s reconcile.Stats) {
	fmt.Fprintf(os.Stderr, "classified: %v\n", s.Classified)
	fmt.Fprintf(os.Stderr, "duplicates: %d by id, %d by content\n", s.IDDuplicates, s.ContentDuplicates)
	fmt.Fprintf(os.Stderr, "welcome suppressed: %d, strawmen grouped: %d\n", s.WelcomeSuppressed, s.Composites)
}
