package reconcile

import (
	"github.com/user/deckster/internal/types"
)

// SendState is the single-flight guard for the send operation.
type SendState int

const (
	SendIdle SendState = iota
	SendInFlight
)

// Context holds the session-scoped state that must survive reconnects within
// one session view: identity indexes, answered prompts, the accepted welcome
// banner and the send guard. It is not safe for concurrent use; the session
// controller serializes access.
type Context struct {
	sessionID    types.SessionID
	knownUserIDs map[types.MessageID]struct{}
	contentIndex map[string]types.MessageID
	answered     *AnsweredActions
	welcomeID    types.MessageID
	send         SendState
}

// NewContext creates an empty context for the given session.
func NewContext(sessionID types.SessionID) *Context {
	c := &Context{}
	c.Reset(sessionID)
	return c
}

// Reset discards all session-scoped state and rebinds the context to
// sessionID. Called on session switch or when starting a new session.
func (c *Context) Reset(sessionID types.SessionID) {
	c.sessionID = sessionID
	c.knownUserIDs = make(map[types.MessageID]struct{})
	c.contentIndex = make(map[string]types.MessageID)
	c.answered = newAnsweredActions()
	c.welcomeID = ""
	c.send = SendIdle
}

func (c *Context) SessionID() types.SessionID {
	return c.sessionID
}

// IsKnownUser reports whether id has been established as user-authored.
func (c *Context) IsKnownUser(id types.MessageID) bool {
	_, ok := c.knownUserIDs[id]
	return ok
}

// RegisterUser adds id to the known user ids. The set only grows.
func (c *Context) RegisterUser(id types.MessageID) {
	if id == "" {
		return
	}
	c.knownUserIDs[id] = struct{}{}
}

// KnownUserCount returns the size of the known user id set.
func (c *Context) KnownUserCount() int {
	return len(c.knownUserIDs)
}

// indexContent maps a normalized text to the first user message that
// carried it.
func (c *Context) indexContent(key string, id types.MessageID) {
	if key == "" {
		return
	}
	if _, ok := c.contentIndex[key]; !ok {
		c.contentIndex[key] = id
	}
}

func (c *Context) lookupContent(key string) (types.MessageID, bool) {
	if key == "" {
		return "", false
	}
	id, ok := c.contentIndex[key]
	return id, ok
}

// Answered returns the tracker of action prompts answered in this live session.
func (c *Context) Answered() *AnsweredActions {
	return c.answered
}

// WelcomeSeen reports whether a welcome banner has been accepted into the
// transcript of this session view.
func (c *Context) WelcomeSeen() bool {
	return c.welcomeID != ""
}

// WelcomeID returns the id of the accepted welcome banner, or "".
func (c *Context) WelcomeID() types.MessageID {
	return c.welcomeID
}

// BeginSend claims the send guard. It returns false if a send is already in
// flight, in which case the caller must reject the request.
func (c *Context) BeginSend() bool {
	if c.send == SendInFlight {
		return false
	}
	c.send = SendInFlight
	return true
}

// EndSend releases the send guard.
func (c *Context) EndSend() {
	c.send = SendIdle
}

func (c *Context) Sending() bool {
	return c.send == SendInFlight
}
