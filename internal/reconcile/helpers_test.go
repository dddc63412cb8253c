package reconcile

import (
	"io"
	"log/slog"

	"github.com/user/deckster/internal/types"
)

const testSession = types.SessionID("sess-1")

// base is 2024-01-01T10:00:00Z.
const base int64 = 1704103200000

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine() *Engine {
	return NewEngine(NewContext(testSession), WithLogger(discardLogger()))
}

func userRec(id, text string, ms int64) types.UserMessageRecord {
	return types.UserMessageRecord{ID: types.MessageID(id), Text: text, TimestampMs: ms}
}

func event(id string, ts types.RawTimestamp, p types.Payload) *types.AgentEvent {
	return &types.AgentEvent{
		MessageID: types.MessageID(id),
		SessionID: testSession,
		Timestamp: ts,
		Type:      p.Kind(),
		Payload:   p,
	}
}

func chat(id string, ms int64, text string) *types.AgentEvent {
	return event(id, types.EpochMillis(ms), types.ChatPayload{Text: text})
}

func hinted(id string, ms int64, text string) *types.AgentEvent {
	e := chat(id, ms, text)
	e.AuthorHint = types.OriginUser
	return e
}

func slide(id string, ms int64) *types.AgentEvent {
	return event(id, types.EpochMillis(ms), types.SlideUpdatePayload{
		Operation: "full_deck",
		Metadata:  types.SlideMetadata{MainTitle: "Owls"},
		Slides:    []types.Slide{{SlideID: "slide_001", SlideNumber: 1, Title: "Intro"}},
	})
}

func presURL(id string, ms int64) *types.AgentEvent {
	return event(id, types.EpochMillis(ms), types.PresentationURLPayload{URL: "https://example.com/p/1"})
}

func action(id string, ms int64) *types.AgentEvent {
	return event(id, types.EpochMillis(ms), types.ActionRequestPayload{
		PromptText: "Looks good?",
		Actions: []types.Action{
			{Label: "Accept", Value: "accept_strawman", Primary: true},
			{Label: "Refine", Value: "request_refinement"},
		},
	})
}

func ids(items []Item) []types.MessageID {
	out := make([]types.MessageID, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
