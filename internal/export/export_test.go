package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/user/deckster/internal/reconcile"
	"github.com/user/deckster/internal/types"
)

const base int64 = 1704103200000

func sampleTranscript(t *testing.T) *Transcript {
	t.Helper()
	ctx := reconcile.NewContext("sess-1")
	engine := reconcile.NewEngine(ctx, reconcile.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res := engine.Reconcile(reconcile.Inputs{
		UserMessages: []types.UserMessageRecord{{ID: "user_1", Text: "Make a deck about owls", TimestampMs: base}},
		Live: []*types.AgentEvent{
			{MessageID: "c1", Timestamp: types.EpochMillis(base + 1000), Type: types.EventChatMessage,
				Payload: types.ChatPayload{Text: "<p>Here is a <strong>draft</strong></p>", Format: "html"}},
			{MessageID: "s1", Timestamp: types.EpochMillis(base + 2000), Type: types.EventSlideUpdate,
				Payload: types.SlideUpdatePayload{
					Metadata: types.SlideMetadata{MainTitle: "Owls of the World"},
					Slides:   []types.Slide{{SlideNumber: 1, Title: "Intro"}, {SlideNumber: 2, Title: "Habitats"}},
				}},
			{MessageID: "u1", Timestamp: types.EpochMillis(base + 3000), Type: types.EventPresentationURL,
				Payload: types.PresentationURLPayload{URL: "https://slides.example.com/p/1"}},
			{MessageID: "a1", Timestamp: types.EpochMillis(base + 4000), Type: types.EventActionRequest,
				Payload: types.ActionRequestPayload{PromptText: "Happy with this?", Actions: []types.Action{
					{Label: "Accept", Value: "accept_strawman", Primary: true},
					{Label: "Refine", Value: "request_refinement"},
				}}},
		},
	})
	return NewTranscript("sess-1", res)
}

func TestNewTranscriptFlattens(t *testing.T) {
	tr := sampleTranscript(t)
	if len(tr.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(tr.Entries))
	}

	chat := tr.Entries[1]
	if !strings.Contains(chat.Text, "**draft**") {
		t.Errorf("html chat should be converted to markdown, got %q", chat.Text)
	}

	straw := tr.Entries[2]
	if straw.Kind != "strawman_summary" || straw.Title != "Owls of the World" || len(straw.Slides) != 2 {
		t.Errorf("unexpected strawman entry: %+v", straw)
	}
	if straw.URL != "https://slides.example.com/p/1" || straw.ActionID != "a1" || !straw.HasActions() {
		t.Errorf("strawman should carry url and open action: %+v", straw)
	}
	if tr.Stats == nil || tr.Stats.Composites != 1 {
		t.Errorf("stats not carried: %+v", tr.Stats)
	}
}

func TestNewExporter(t *testing.T) {
	for _, format := range Formats {
		if _, err := NewExporter(format); err != nil {
			t.Errorf("NewExporter(%q): %v", format, err)
		}
	}
	if _, err := NewExporter("pdf"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(sampleTranscript(t), &buf); err != nil {
		t.Fatal(err)
	}
	var decoded Transcript
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.SessionID != "sess-1" || len(decoded.Entries) != 3 || decoded.Entries[0].Text != "Make a deck about owls" {
		t.Errorf("unexpected decoded transcript: %+v", decoded)
	}
}

func TestJSONLExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(sampleTranscript(t), &buf); err != nil {
		t.Fatal(err)
	}
	scanner := bufio.NewScanner(&buf)
	var lines int
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d: %v", lines, err)
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("expected 3 lines, got %d", lines)
	}
}

func TestYAMLExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(sampleTranscript(t), &buf); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", decoded["session_id"])
	}
	entries, ok := decoded["entries"].([]any)
	if !ok || len(entries) != 3 {
		t.Errorf("unexpected entries: %v", decoded["entries"])
	}
}

func TestTextExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextExporter{}).Export(sampleTranscript(t), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Session sess-1 (3 entries)",
		"You",
		"Make a deck about owls",
		"Owls of the World (2 slides)",
		"2. Habitats",
		"https://slides.example.com/p/1",
		"[1] Accept",
		"[2] Refine",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderAnswered(t *testing.T) {
	e := Entry{Origin: types.OriginAgent, Prompt: "Proceed?", Actions: []ActionView{{Label: "Yes"}}, Answered: true}
	out := Styles{}.Render(e)
	if strings.Contains(out, "[1] Yes") || !strings.Contains(out, "(answered)") {
		t.Errorf("answered prompt should hide buttons:\n%s", out)
	}
}

func TestMarkdownExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(sampleTranscript(t), &buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"# Session sess-1", "### Owls of the World", "- [ ] Accept", "<https://slides.example.com/p/1>"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}
