package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/deckster/internal/types"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS history (
	session_id TEXT NOT NULL,
	id         TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	type       TEXT NOT NULL,
	payload    TEXT,
	user_text  TEXT,
	role       TEXT,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, id)
);
CREATE INDEX IF NOT EXISTS history_session_created ON history (session_id, created_at);
`

// historyMigrations upgrade databases created before a column existed.
// A "duplicate column" failure means the column is already there.
var historyMigrations = []string{
	`ALTER TABLE history ADD COLUMN role TEXT`,
}

// SQLiteStore keeps history rows in a SQLite database. Writes are
// idempotent on (session_id, id).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers the way SQLite wants.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	for _, m := range historyMigrations {
		if _, err := db.Exec(m); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}
	return &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "history"),
		now:    time.Now,
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Persist(ctx context.Context, req *types.PersistRequest) error {
	if req.SessionID == "" {
		return fmt.Errorf("persist %s: invalid empty session id", req.ID)
	}
	ts, err := json.Marshal(req.Timestamp)
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	var payload sql.NullString
	if len(req.Payload) > 0 {
		payload = sql.NullString{String: string(req.Payload), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO history (session_id, id, timestamp, type, payload, user_text, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.SessionID), string(req.ID), string(ts), req.Type, payload, req.UserText, req.Role, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Restore(ctx context.Context, sessionID types.SessionID) (*types.History, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, type, payload, user_text, role FROM history
		 WHERE session_id = ? ORDER BY created_at, rowid`,
		string(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var reqs []*types.PersistRequest
	for rows.Next() {
		var (
			id, ts, typ string
			payload     sql.NullString
			userText    sql.NullString
			role        sql.NullString
		)
		if err := rows.Scan(&id, &ts, &typ, &payload, &userText, &role); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		req := &types.PersistRequest{
			ID:        types.MessageID(id),
			SessionID: sessionID,
			Type:      typ,
			UserText:  userText.String,
			Role:      role.String,
		}
		if err := json.Unmarshal([]byte(ts), &req.Timestamp); err != nil {
			s.logger.Warn("bad stored timestamp", "message_id", id, "error", err)
		}
		if payload.Valid {
			req.Payload = json.RawMessage(payload.String)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	history, errs := types.RestoreHistory(reqs)
	for _, err := range errs {
		s.logger.Warn("skipping undecodable history row", "session_id", string(sessionID), "error", err)
	}
	return history, nil
}

func (s *SQLiteStore) Sessions(ctx context.Context) ([]*types.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, COUNT(*), MAX(created_at) FROM history
		 GROUP BY session_id ORDER BY MAX(created_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.SessionSummary
	for rows.Next() {
		var (
			id      string
			count   int64
			updated int64
		)
		if err := rows.Scan(&id, &count, &updated); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, &types.SessionSummary{
			SessionID: types.SessionID(id),
			Messages:  count,
			UpdatedAt: time.Unix(0, updated).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
