package state

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/user/deckster/internal/types"
)

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	historyStoreContract(t, store)
}

func TestSQLiteStoreHintedRowRestoresAsUser(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "db", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	ev := &types.AgentEvent{
		MessageID:  "evt_7",
		SessionID:  "s1",
		Timestamp:  types.EpochMillis(42),
		Type:       types.EventChatMessage,
		AuthorHint: types.OriginUser,
		Payload:    types.ChatPayload{Text: "make it blue"},
	}
	req, err := types.EventPersistRequest(ev)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx, req); err != nil {
		t.Fatal(err)
	}

	history, err := store.Restore(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history.AgentEvents) != 1 {
		t.Fatalf("expected 1 event, got %d", len(history.AgentEvents))
	}
	got := history.AgentEvents[0]
	if got.AuthorHint != types.OriginUser || got.Timestamp.Millis != 42 || got.Text() != "make it blue" {
		t.Errorf("unexpected restored event: %+v", got)
	}
}

func TestSQLiteStoreMigratesRoleColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	old, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = old.Exec(`CREATE TABLE history (
		session_id TEXT NOT NULL,
		id         TEXT NOT NULL,
		timestamp  TEXT NOT NULL,
		type       TEXT NOT NULL,
		payload    TEXT,
		user_text  TEXT,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, id)
	)`)
	old.Close()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		store, err := OpenSQLiteStore(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		store.Close()
	}

	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	ev := &types.AgentEvent{
		MessageID:  "evt_8",
		SessionID:  "s1",
		Timestamp:  types.EpochMillis(43),
		Type:       types.EventChatMessage,
		AuthorHint: types.OriginUser,
		Payload:    types.ChatPayload{},
	}
	req, err := types.EventPersistRequest(ev)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx, req); err != nil {
		t.Fatal(err)
	}
	history, err := store.Restore(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history.AgentEvents) != 1 || history.AgentEvents[0].AuthorHint != types.OriginUser {
		t.Errorf("expected empty hinted event to restore as user, got %+v", history.AgentEvents)
	}
}
