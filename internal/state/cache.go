// internal/state/cache.go
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/deckster/internal/types"
)

// ErrNotFound is returned when a session has no stored data.
var ErrNotFound = errors.New("not found")

// UserCache is the write-through cache of messages the user created on this
// client, one JSON file per session at sessions/<sessionID>/user_messages.json.
type UserCache struct {
	root string
	mu   sync.RWMutex
}

// NewUserCache creates a file-backed UserCache rooted at the given directory.
func NewUserCache(root string) *UserCache {
	return &UserCache{root: root}
}

func (c *UserCache) sessionsDir() string {
	return filepath.Join(c.root, "sessions")
}

func (c *UserCache) cachePath(id types.SessionID) string {
	return filepath.Join(c.sessionsDir(), string(id), "user_messages.json")
}

// Load returns the cached records for a session, or nil if there are none.
func (c *UserCache) Load(id types.SessionID) ([]types.UserMessageRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.cachePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read user cache: %w", err)
	}

	var records []types.UserMessageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("unmarshal user cache: %w", err)
	}
	return records, nil
}

// Save replaces the session's cached records, writing atomically.
func (c *UserCache) Save(id types.SessionID, records []types.UserMessageRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if records == nil {
		records = []types.UserMessageRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user cache: %w", err)
	}

	path := c.cachePath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp cache: %w", err)
	}
	return nil
}

// Clear removes the session's cache file.
func (c *UserCache) Clear(id types.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.cachePath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("user cache for session %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("remove user cache: %w", err)
	}
	return nil
}

// CacheInfo describes one session's cache file.
type CacheInfo struct {
	SessionID types.SessionID `json:"session_id"`
	Records   int             `json:"records"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// List returns every session that has a cache file.
func (c *UserCache) List() ([]CacheInfo, error) {
	entries, err := os.ReadDir(c.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var out []CacheInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := types.SessionID(entry.Name())
		info, err := os.Stat(c.cachePath(id))
		if err != nil {
			continue
		}
		records, err := c.Load(id)
		if err != nil {
			return nil, err
		}
		out = append(out, CacheInfo{SessionID: id, Records: len(records), UpdatedAt: info.ModTime().UTC()})
	}
	return out, nil
}

// Prune removes caches not written since before now-maxAge and returns the
// sessions it cleared.
func (c *UserCache) Prune(now time.Time, maxAge time.Duration) ([]types.SessionID, error) {
	caches, err := c.List()
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-maxAge)
	var pruned []types.SessionID
	for _, info := range caches {
		if !info.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := c.Clear(info.SessionID); err != nil && !errors.Is(err, ErrNotFound) {
			return pruned, err
		}
		pruned = append(pruned, info.SessionID)
	}
	return pruned, nil
}
