// Package state provides the storage collaborators of the session
// controller: history stores and the per-session user-message cache.
package state

import "github.com/user/deckster/internal/types"

// Compile-time interface compliance checks.
var _ types.HistoryStore = (*HistoryLog)(nil)
var _ types.HistoryStore = (*SQLiteStore)(nil)
var _ types.UserMessageCache = (*UserCache)(nil)
