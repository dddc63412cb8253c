// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type SessionID string
type MessageID string
type UserID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// NewMessageID returns an id for a message created on this side of the
// connection. The Director echoes it back on its persisted copy, which is
// what lets classification recognise the echo by identity.
func NewMessageID() MessageID {
	return MessageID("user_" + uuid.New().String())
}

// CompositeID derives the id of a grouped strawman record from the id of
// the slide_update that opens it.
func CompositeID(slideUpdate MessageID) MessageID {
	return MessageID("strawman_" + string(slideUpdate))
}
