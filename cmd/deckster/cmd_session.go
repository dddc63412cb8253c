package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/deckster/internal/state"
	"github.com/user/deckster/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionClearCmd, sessionPruneCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

type sessionRow struct {
	id       types.SessionID
	messages int64
	cached   int
	updated  time.Time
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions with stored history or cached messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		history, cache, closeStores, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		summaries, err := history.Sessions(context.Background())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		cached, err := cache.List()
		if err != nil {
			return fmt.Errorf("list cache: %w", err)
		}

		rows := make(map[types.SessionID]*sessionRow)
		for _, s := range summaries {
			rows[s.SessionID] = &sessionRow{id: s.SessionID, messages: s.Messages, updated: s.UpdatedAt}
		}
		for _, c := range cached {
			r, ok := rows[c.SessionID]
			if !ok {
				r = &sessionRow{id: c.SessionID}
				rows[c.SessionID] = r
			}
			r.cached = c.Records
			if c.UpdatedAt.After(r.updated) {
				r.updated = c.UpdatedAt
			}
		}

		if len(rows) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		list := make([]*sessionRow, 0, len(rows))
		for _, r := range rows {
			list = append(list, r)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].updated.After(list[j].updated) })

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMESSAGES\tCACHED\tUPDATED")
		for _, r := range list {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.id, r.messages, r.cached, r.updated.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

// sessionDir resolves a session's directory under <data_dir>/sessions,
// rejecting ids that would escape it.
func sessionDir(dataDir, id string) (string, error) {
	if id == "" || !filepath.IsLocal(id) || strings.ContainsRune(id, filepath.Separator) {
		return "", fmt.Errorf("invalid session ID: %s", id)
	}
	return filepath.Join(dataDir, "sessions", id), nil
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Remove local history and cached messages for a session, or for all",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		target := args[0]

		if target == "all" {
			if err := os.RemoveAll(filepath.Join(cfg.DataDir, "sessions")); err != nil {
				return fmt.Errorf("remove sessions: %w", err)
			}
			fmt.Println("All local sessions cleared.")
		} else {
			dir, err := sessionDir(cfg.DataDir, target)
			if err != nil {
				return err
			}
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("session not found: %s", target)
			}
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("remove session %s: %w", target, err)
			}
			fmt.Fprintf(os.Stdout, "Session %s cleared.\n", target)
		}
		if cfg.History.Backend == "sqlite" {
			fmt.Fprintf(os.Stdout, "Rows in %s were kept.\n", cfg.SQLitePath())
		}
		return nil
	},
}

var sessionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop user-message caches older than cache.max_age_hours",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		janitor := state.NewJanitor(state.NewUserCache(cfg.DataDir), cfg.Cache.PruneSchedule, cfg.CacheMaxAge())
		n, err := janitor.RunOnce()
		if err != nil {
			return fmt.Errorf("prune cache: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Pruned %d cached session(s).\n", n)
		return nil
	},
}
