// internal/types/persist.go
package types

import (
	"encoding/json"
	"fmt"
)

// PersistRequest is the outbound record handed to the persistence
// collaborator. Stores dedupe by ID, so enqueueing the same request more
// than once is harmless.
type PersistRequest struct {
	ID        MessageID       `json:"id"`
	SessionID SessionID       `json:"session_id"`
	Timestamp RawTimestamp    `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	UserText  string          `json:"user_text,omitempty"`
	Role      string          `json:"role,omitempty"`
}

// UserPersistRequest builds the request for a message the user created.
func UserPersistRequest(sessionID SessionID, rec UserMessageRecord) *PersistRequest {
	return &PersistRequest{
		ID:        rec.ID,
		SessionID: sessionID,
		Timestamp: EpochMillis(rec.TimestampMs),
		Type:      UserMessageType,
		UserText:  rec.Text,
	}
}

// EventPersistRequest builds the request for a Director event. Author-hinted
// events keep their role, and their text in UserText, so a restore rebuilds
// them as user-origin even when the text is empty.
func EventPersistRequest(e *AgentEvent) (*PersistRequest, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.MessageID, err)
	}
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("split event %s: %w", e.MessageID, err)
	}
	req := &PersistRequest{
		ID:        e.MessageID,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Type:      w.Type,
		Payload:   w.Payload,
	}
	if e.AuthorHint == OriginUser {
		req.Role = string(OriginUser)
		req.UserText = e.Text()
	}
	return req, nil
}

// Restore turns a persisted row back into what it was created from. Exactly
// one of the returned values is non-nil when err is nil.
func (r *PersistRequest) Restore() (*UserMessageRecord, *AgentEvent, error) {
	if r.Type == UserMessageType {
		ts := r.Timestamp.Millis
		if r.Timestamp.Kind != TimestampNumber {
			ts = 0
		}
		return &UserMessageRecord{ID: r.ID, Text: r.UserText, TimestampMs: ts}, nil, nil
	}
	w := wireEvent{
		MessageID: r.ID,
		SessionID: r.SessionID,
		Timestamp: r.Timestamp,
		Type:      r.Type,
		Payload:   r.Payload,
	}
	if r.Role == string(OriginUser) || r.UserText != "" {
		w.Role = string(OriginUser)
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, nil, fmt.Errorf("encode row %s: %w", r.ID, err)
	}
	var e AgentEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, nil, fmt.Errorf("decode row %s: %w", r.ID, err)
	}
	return nil, &e, nil
}

// RestoreHistory splits persisted rows into user records and agent events,
// preserving row order within each. Rows that cannot be decoded are
// returned separately so the caller can log them.
func RestoreHistory(rows []*PersistRequest) (*History, []error) {
	h := &History{}
	var errs []error
	for _, row := range rows {
		rec, ev, err := row.Restore()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			h.UserMessages = append(h.UserMessages, *rec)
		} else {
			h.AgentEvents = append(h.AgentEvents, ev)
		}
	}
	return h, errs
}
