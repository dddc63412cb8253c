// internal/types/models.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Origin records who authored a transcript entry.
type Origin string

const (
	OriginUser  Origin = "user"
	OriginAgent Origin = "agent"
)

// EventType is the discriminant of an AgentEvent payload.
type EventType string

const (
	EventChatMessage     EventType = "chat_message"
	EventActionRequest   EventType = "action_request"
	EventSlideUpdate     EventType = "slide_update"
	EventPresentationURL EventType = "presentation_url"
	EventOther           EventType = "other"
)

// UserMessageType is the persisted type of a UserMessageRecord.
const UserMessageType = "user_message"

// UserMessageRecord is a message typed (or clicked) by the user on this
// client. Records are immutable once created.
type UserMessageRecord struct {
	ID          MessageID `json:"id"`
	Text        string    `json:"text"`
	TimestampMs int64     `json:"timestamp_ms"`
}

// TimestampKind says which form a RawTimestamp arrived in.
type TimestampKind int

const (
	TimestampMissing TimestampKind = iota
	TimestampString
	TimestampNumber
)

// RawTimestamp holds a timestamp exactly as the producer sent it: an ISO-8601
// string (possibly without a zone suffix) or epoch milliseconds.
type RawTimestamp struct {
	Kind   TimestampKind
	Text   string
	Millis int64
}

// StringTimestamp wraps an ISO-8601 string.
func StringTimestamp(s string) RawTimestamp {
	return RawTimestamp{Kind: TimestampString, Text: s}
}

// EpochMillis wraps an epoch-millisecond value.
func EpochMillis(ms int64) RawTimestamp {
	return RawTimestamp{Kind: TimestampNumber, Millis: ms}
}

func (t RawTimestamp) String() string {
	switch t.Kind {
	case TimestampString:
		return t.Text
	case TimestampNumber:
		return strconv.FormatInt(t.Millis, 10)
	default:
		return ""
	}
}

func (t RawTimestamp) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case TimestampString:
		return json.Marshal(t.Text)
	case TimestampNumber:
		return []byte(strconv.FormatInt(t.Millis, 10)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON never fails on a well-formed JSON token: a value that is
// neither a string nor an integer is kept as text so the normalizer can
// report it and degrade it to epoch 0.
func (t *RawTimestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = RawTimestamp{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		*t = StringTimestamp(s)
		return nil
	}
	if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*t = EpochMillis(ms)
		return nil
	}
	if f, err := strconv.ParseFloat(string(data), 64); err == nil {
		*t = EpochMillis(int64(f))
		return nil
	}
	*t = StringTimestamp(string(data))
	return nil
}

// Payload is the sealed set of per-kind event payloads. A type switch over
// Payload in the engine is expected to name every implementation.
type Payload interface {
	Kind() EventType
}

type ChatPayload struct {
	Text   string `json:"text"`
	Format string `json:"format,omitempty"` // "markdown" (default) or "html"
}

type Action struct {
	Label         string `json:"label"`
	Value         string `json:"value"`
	Primary       bool   `json:"primary,omitempty"`
	RequiresInput bool   `json:"requires_input,omitempty"`
}

type ActionRequestPayload struct {
	PromptText string   `json:"prompt_text"`
	Actions    []Action `json:"actions"`
}

type SlideMetadata struct {
	MainTitle            string `json:"main_title,omitempty"`
	OverallTheme         string `json:"overall_theme,omitempty"`
	DesignSuggestions    string `json:"design_suggestions,omitempty"`
	TargetAudience       string `json:"target_audience,omitempty"`
	PresentationDuration int    `json:"presentation_duration,omitempty"`
}

type Slide struct {
	SlideID     string   `json:"slide_id"`
	SlideNumber int      `json:"slide_number"`
	Title       string   `json:"title"`
	SlideType   string   `json:"slide_type,omitempty"`
	Narrative   string   `json:"narrative,omitempty"`
	KeyPoints   []string `json:"key_points,omitempty"`
}

type SlideUpdatePayload struct {
	Operation string        `json:"operation,omitempty"`
	Metadata  SlideMetadata `json:"metadata"`
	Slides    []Slide       `json:"slides"`
}

type PresentationURLPayload struct {
	URL            string `json:"url"`
	PresentationID string `json:"presentation_id,omitempty"`
	SlideCount     int    `json:"slide_count,omitempty"`
	Message        string `json:"message,omitempty"`
}

// OtherPayload carries any event kind this client does not model. Type keeps
// the wire name so the event round-trips unchanged.
type OtherPayload struct {
	Type string
	Raw  json.RawMessage
}

func (ChatPayload) Kind() EventType            { return EventChatMessage }
func (ActionRequestPayload) Kind() EventType   { return EventActionRequest }
func (SlideUpdatePayload) Kind() EventType     { return EventSlideUpdate }
func (PresentationURLPayload) Kind() EventType { return EventPresentationURL }
func (OtherPayload) Kind() EventType           { return EventOther }

// AgentEvent is one structured event from the Director, live or restored.
type AgentEvent struct {
	MessageID  MessageID
	SessionID  SessionID
	Timestamp  RawTimestamp
	Type       EventType
	AuthorHint Origin
	Payload    Payload
}

// Text returns the user-visible text the event carries, used for content
// identity. Only chat messages carry comparable text.
func (e *AgentEvent) Text() string {
	if p, ok := e.Payload.(ChatPayload); ok {
		return p.Text
	}
	return ""
}

type wireEvent struct {
	MessageID MessageID       `json:"message_id"`
	SessionID SessionID       `json:"session_id"`
	Timestamp RawTimestamp    `json:"timestamp"`
	Type      string          `json:"type"`
	Role      string          `json:"role,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func (e AgentEvent) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		MessageID: e.MessageID,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Type:      string(e.Type),
	}
	if e.AuthorHint == OriginUser {
		w.Role = string(OriginUser)
	}
	switch p := e.Payload.(type) {
	case nil:
	case OtherPayload:
		if p.Type != "" {
			w.Type = p.Type
		}
		w.Payload = p.Raw
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the Director envelope. Only a malformed envelope is
// an error: unknown types and payloads that do not fit their declared kind
// become EventOther so they still reach the transcript.
func (e *AgentEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	*e = AgentEvent{
		MessageID: w.MessageID,
		SessionID: w.SessionID,
		Timestamp: w.Timestamp,
	}
	if strings.EqualFold(w.Role, string(OriginUser)) {
		e.AuthorHint = OriginUser
	}
	payload, err := decodePayload(EventType(w.Type), w.Payload)
	if err != nil {
		payload = OtherPayload{Type: w.Type, Raw: w.Payload}
	}
	e.Payload = payload
	e.Type = payload.Kind()
	return nil
}

func decodePayload(kind EventType, raw json.RawMessage) (Payload, error) {
	switch kind {
	case EventChatMessage, EventActionRequest, EventSlideUpdate, EventPresentationURL:
		if len(raw) == 0 {
			raw = json.RawMessage("{}")
		}
	}
	switch kind {
	case EventChatMessage:
		var p ChatPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case EventActionRequest:
		var p ActionRequestPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case EventSlideUpdate:
		var p SlideUpdatePayload
		err := json.Unmarshal(raw, &p)
		return p, err
	case EventPresentationURL:
		var p PresentationURLPayload
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return OtherPayload{Type: string(kind), Raw: raw}, nil
	}
}

// History is what a persistence restore returns for one session.
type History struct {
	UserMessages []UserMessageRecord
	AgentEvents  []*AgentEvent
}
