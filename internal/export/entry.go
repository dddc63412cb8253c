package export

import (
	"log/slog"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/deckster/internal/reconcile"
	"github.com/user/deckster/internal/types"
)

// Transcript is what every exporter writes.
type Transcript struct {
	SessionID types.SessionID  `json:"session_id" yaml:"session_id"`
	Stats     *reconcile.Stats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Entries   []Entry          `json:"entries" yaml:"entries"`
}

// ActionView is one button of an action prompt.
type ActionView struct {
	Label   string `json:"label" yaml:"label"`
	Value   string `json:"value" yaml:"value"`
	Primary bool   `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// SlideView is one slide of a strawman.
type SlideView struct {
	Number int    `json:"number" yaml:"number"`
	Title  string `json:"title" yaml:"title"`
}

// Entry is a flattened transcript item, independent of event payload
// shapes so every format can encode it directly.
type Entry struct {
	ID        types.MessageID `json:"id" yaml:"id"`
	Kind      string          `json:"kind" yaml:"kind"`
	Origin    types.Origin    `json:"origin" yaml:"origin"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Text      string          `json:"text,omitempty" yaml:"text,omitempty"`
	Title     string          `json:"title,omitempty" yaml:"title,omitempty"`
	Slides    []SlideView     `json:"slides,omitempty" yaml:"slides,omitempty"`
	URL       string          `json:"url,omitempty" yaml:"url,omitempty"`
	Prompt    string          `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Actions   []ActionView    `json:"actions,omitempty" yaml:"actions,omitempty"`
	Answered  bool            `json:"answered,omitempty" yaml:"answered,omitempty"`
	// ActionID is the id of the prompt the buttons answer; for a strawman it
	// differs from ID.
	ActionID types.MessageID `json:"action_id,omitempty" yaml:"action_id,omitempty"`
}

// HasActions reports whether the entry still offers buttons.
func (e Entry) HasActions() bool {
	return len(e.Actions) > 0 && !e.Answered
}

// NewTranscript flattens a reconciliation result.
func NewTranscript(sessionID types.SessionID, res *reconcile.Result) *Transcript {
	t := &Transcript{SessionID: sessionID, Entries: []Entry{}}
	if res == nil {
		return t
	}
	stats := res.Stats
	t.Stats = &stats
	t.Entries = Entries(res.Items)
	return t
}

// Entries flattens transcript items in order.
func Entries(items []reconcile.Item) []Entry {
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, entryFrom(it))
	}
	return out
}

func entryFrom(it reconcile.Item) Entry {
	e := Entry{
		ID:        it.ID,
		Kind:      string(it.Kind),
		Origin:    it.Origin,
		Timestamp: time.UnixMilli(it.TimestampMs).UTC(),
		Answered:  it.Answered,
	}
	switch {
	case it.User != nil:
		e.Text = it.User.Text
	case it.Composite != nil:
		applyEvent(&e, it.Composite.SlideUpdate)
		applyEvent(&e, it.Composite.PresentationURL)
		applyEvent(&e, it.Composite.ActionRequest)
	case it.Event != nil:
		if it.Event.Type == types.EventOther {
			e.Kind = otherKind(it.Event)
		}
		applyEvent(&e, it.Event)
	}
	return e
}

func otherKind(ev *types.AgentEvent) string {
	if p, ok := ev.Payload.(types.OtherPayload); ok && p.Type != "" {
		return p.Type
	}
	return string(types.EventOther)
}

func applyEvent(e *Entry, ev *types.AgentEvent) {
	if ev == nil {
		return
	}
	switch p := ev.Payload.(type) {
	case types.ChatPayload:
		e.Text = chatText(p)
	case types.ActionRequestPayload:
		e.Prompt = p.PromptText
		e.ActionID = ev.MessageID
		for _, a := range p.Actions {
			e.Actions = append(e.Actions, ActionView{Label: a.Label, Value: a.Value, Primary: a.Primary})
		}
	case types.SlideUpdatePayload:
		e.Title = p.Metadata.MainTitle
		for _, s := range p.Slides {
			e.Slides = append(e.Slides, SlideView{Number: s.SlideNumber, Title: s.Title})
		}
	case types.PresentationURLPayload:
		e.URL = p.URL
		if e.Text == "" {
			e.Text = p.Message
		}
	case types.OtherPayload:
	}
}

func chatText(p types.ChatPayload) string {
	if p.Format != "html" {
		return p.Text
	}
	md, err := htmltomarkdown.ConvertString(p.Text)
	if err != nil {
		slog.Warn("html conversion failed, keeping raw text", "error", err)
		return p.Text
	}
	return md
}
