package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/deckster/internal/director"
	"github.com/user/deckster/internal/persist"
	"github.com/user/deckster/internal/session"
	"github.com/user/deckster/internal/tui"
	"github.com/user/deckster/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Open an interactive session with the Director",
	Long:  "Open an interactive session with the Director. Without a session id a new session is started.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logFile, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()
	setupLogging(cfg, logFile)

	sessionID := types.NewSessionID()
	if len(args) == 1 {
		sessionID = types.SessionID(args[0])
	}

	history, cache, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := persist.NewQueue(history, int64(cfg.MaxConcurrent))
	queue.OnError(func(e *persist.PersistError) {
		slog.Error("history write dropped", "session_id", string(e.SessionID), "message_id", string(e.ID), "error", e.Err)
	})
	queue.Start(ctx)
	defer func() {
		if !queue.WaitIdle(5 * time.Second) {
			slog.Warn("history writes still pending at exit")
		}
		queue.Stop()
	}()

	client, err := director.Dial(ctx, director.Options{
		URL:       cfg.Director.URL,
		SessionID: sessionID,
		UserID:    types.UserID(cfg.Director.UserID),
		Token:     cfg.Director.Token,
	})
	if err != nil {
		return fmt.Errorf("connect to director: %w", err)
	}
	defer client.Close()

	ctrl := session.New(sessionID, session.Deps{
		Cache:     cache,
		History:   history,
		Persister: queue,
		Transport: client,
	}, session.WithWelcomePatterns(cfg.Welcome.Patterns))
	if err := ctrl.Open(); err != nil {
		slog.Warn("user cache unreadable", "session_id", string(sessionID), "error", err)
	}
	if err := ctrl.RestoreHistory(ctx); err != nil {
		slog.Warn("history restore failed", "session_id", string(sessionID), "error", err)
	}
	slog.Info("chat started", "session_id", string(sessionID), "director", cfg.Director.URL, "history_backend", cfg.History.Backend)

	uiCtx, closeUI := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(uiCtx)
	g.Go(func() error {
		return client.Listen(gctx, ctrl.HandleEvent)
	})
	g.Go(func() error {
		defer closeUI()
		return tui.Run(gctx, ctrl)
	})
	err = g.Wait()
	ctrl.Close()

	fmt.Fprintf(os.Stdout, "Session %s\n", sessionID)
	return err
}
