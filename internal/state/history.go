// internal/state/history.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/user/deckster/internal/types"
)

// HistoryLog is a JSONL-backed history store. Rows are stored per session
// in sessions/<sessionID>/history.jsonl and deduplicated by message id.
type HistoryLog struct {
	root   string
	logger *slog.Logger
	mu     sync.Mutex
	locks  map[types.SessionID]*sync.Mutex
	ids    map[types.SessionID]map[types.MessageID]struct{}
}

// NewHistoryLog creates a file-backed HistoryLog rooted at the given directory.
func NewHistoryLog(root string) *HistoryLog {
	return &HistoryLog{
		root:   root,
		logger: slog.Default().With("component", "history"),
		locks:  make(map[types.SessionID]*sync.Mutex),
		ids:    make(map[types.SessionID]map[types.MessageID]struct{}),
	}
}

// getLock returns the per-session mutex, creating one if it doesn't exist.
func (h *HistoryLog) getLock(sessionID types.SessionID) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	if lock, ok := h.locks[sessionID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	h.locks[sessionID] = lock
	return lock
}

func (h *HistoryLog) sessionsDir() string {
	return filepath.Join(h.root, "sessions")
}

func (h *HistoryLog) historyPath(sessionID types.SessionID) string {
	return filepath.Join(h.sessionsDir(), string(sessionID), "history.jsonl")
}

// readRows decodes every row of the session log. Caller must hold the
// session lock.
func (h *HistoryLog) readRows(sessionID types.SessionID) ([]*types.PersistRequest, error) {
	f, err := os.Open(h.historyPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var rows []*types.PersistRequest
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var row types.PersistRequest
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			h.logger.Warn("skipping corrupt history row", "session_id", string(sessionID), "line", line, "error", err)
			continue
		}
		rows = append(rows, &row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history file: %w", err)
	}
	return rows, nil
}

// idIndex returns the set of ids already written for the session, reading
// the log on first use. Caller must hold the session lock.
func (h *HistoryLog) idIndex(sessionID types.SessionID) (map[types.MessageID]struct{}, error) {
	h.mu.Lock()
	index, ok := h.ids[sessionID]
	h.mu.Unlock()
	if ok {
		return index, nil
	}

	rows, err := h.readRows(sessionID)
	if err != nil {
		return nil, err
	}
	index = make(map[types.MessageID]struct{}, len(rows))
	for _, row := range rows {
		index[row.ID] = struct{}{}
	}

	h.mu.Lock()
	h.ids[sessionID] = index
	h.mu.Unlock()
	return index, nil
}

// Persist appends the request unless a row with the same id already exists.
func (h *HistoryLog) Persist(_ context.Context, req *types.PersistRequest) error {
	if req.SessionID == "" {
		return fmt.Errorf("persist %s: invalid empty session id", req.ID)
	}
	lock := h.getLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	index, err := h.idIndex(req.SessionID)
	if err != nil {
		return err
	}
	if _, dup := index[req.ID]; dup {
		return nil
	}

	dir := filepath.Dir(h.historyPath(req.SessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal history row: %w", err)
	}

	f, err := os.OpenFile(h.historyPath(req.SessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write history row: %w", err)
	}
	index[req.ID] = struct{}{}
	return nil
}

// Restore returns the session's persisted history in write order.
func (h *HistoryLog) Restore(_ context.Context, sessionID types.SessionID) (*types.History, error) {
	lock := h.getLock(sessionID)
	lock.Lock()
	rows, err := h.readRows(sessionID)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	history, errs := types.RestoreHistory(rows)
	for _, err := range errs {
		h.logger.Warn("skipping undecodable history row", "session_id", string(sessionID), "error", err)
	}
	return history, nil
}

// Sessions lists every session with a history log, most recent first.
func (h *HistoryLog) Sessions(ctx context.Context) ([]*types.SessionSummary, error) {
	entries, err := os.ReadDir(h.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var out []*types.SessionSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := types.SessionID(entry.Name())
		info, err := os.Stat(h.historyPath(id))
		if err != nil {
			continue
		}
		lock := h.getLock(id)
		lock.Lock()
		rows, err := h.readRows(id)
		lock.Unlock()
		if err != nil {
			return nil, err
		}
		out = append(out, &types.SessionSummary{
			SessionID: id,
			Messages:  int64(len(rows)),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
