package reconcile

import (
	"strings"

	"github.com/user/deckster/internal/types"
)

// Method records which rule decided a record's origin.
type Method string

const (
	MethodUserRecord Method = "user_record"
	MethodAuthorHint Method = "author_hint"
	MethodKnownID    Method = "known_id"
	MethodContent    Method = "content_match"
	MethodDefault    Method = "default"
)

// Classified is a user record or agent event tagged with its origin and
// normalized timestamp. Exactly one of User and Event is set.
type Classified struct {
	ID          types.MessageID
	Origin      types.Origin
	Method      Method
	TimestampMs int64
	User        *types.UserMessageRecord
	Event       *types.AgentEvent
}

// ContentKey is the normalized text used for content identity. Records
// that carry no comparable text return "".
func (c Classified) ContentKey() string {
	if c.User != nil {
		return normalizeText(c.User.Text)
	}
	if c.Event != nil {
		return normalizeText(c.Event.Text())
	}
	return ""
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ItemKind discriminates transcript entries.
type ItemKind string

const (
	ItemUserMessage ItemKind = "user_message"
	ItemAgentEvent  ItemKind = "agent_event"
	ItemComposite   ItemKind = "strawman_summary"
)

// CompositeRecord groups a slide_update with the presentation_url that
// follows it and, when present, the action_request after that.
type CompositeRecord struct {
	ID              types.MessageID   `json:"id"`
	Kind            ItemKind          `json:"kind"`
	SlideUpdate     *types.AgentEvent `json:"slide_update"`
	PresentationURL *types.AgentEvent `json:"presentation_url,omitempty"`
	ActionRequest   *types.AgentEvent `json:"action_request,omitempty"`
}

// Item is one entry of the reconciled transcript.
type Item struct {
	Kind        ItemKind                 `json:"kind"`
	ID          types.MessageID          `json:"id"`
	Origin      types.Origin             `json:"origin"`
	TimestampMs int64                    `json:"timestamp_ms"`
	User        *types.UserMessageRecord `json:"user,omitempty"`
	Event       *types.AgentEvent        `json:"event,omitempty"`
	Composite   *CompositeRecord         `json:"composite,omitempty"`
	// Answered is set on action prompts (bare or grouped) the user already
	// responded to in this live session.
	Answered bool `json:"answered,omitempty"`
}

// Text returns the item's displayable chat text, if any.
func (it Item) Text() string {
	switch {
	case it.User != nil:
		return it.User.Text
	case it.Event != nil:
		return it.Event.Text()
	}
	return ""
}

// ActionRequest returns the action prompt carried by the item, bare or
// grouped, or nil.
func (it Item) ActionRequest() *types.AgentEvent {
	if it.Composite != nil {
		return it.Composite.ActionRequest
	}
	if it.Event != nil && it.Origin == types.OriginAgent && it.Event.Type == types.EventActionRequest {
		return it.Event
	}
	return nil
}

func itemFromClassified(c Classified) Item {
	it := Item{
		ID:          c.ID,
		Origin:      c.Origin,
		TimestampMs: c.TimestampMs,
		User:        c.User,
		Event:       c.Event,
	}
	if c.User != nil {
		it.Kind = ItemUserMessage
	} else {
		it.Kind = ItemAgentEvent
	}
	return it
}
