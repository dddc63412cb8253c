// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// HistoryStore is the database-backed persistence collaborator.
type HistoryStore interface {
	Persist(ctx context.Context, req *PersistRequest) error
	Restore(ctx context.Context, sessionID SessionID) (*History, error)
	Sessions(ctx context.Context) ([]*SessionSummary, error)
}

// UserMessageCache is the per-session write-through cache of records the
// user created on this client.
type UserMessageCache interface {
	Load(sessionID SessionID) ([]UserMessageRecord, error)
	Save(sessionID SessionID, records []UserMessageRecord) error
}

// Persister accepts outbound persistence requests without blocking on them.
type Persister interface {
	Enqueue(req *PersistRequest) error
}

// Transport forwards user text to the Director.
type Transport interface {
	Send(ctx context.Context, text string) error
}

// SessionSummary describes one session found in history.
type SessionSummary struct {
	SessionID SessionID `json:"session_id"`
	Messages  int64     `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}
