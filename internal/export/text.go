package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/deckster/internal/types"
)

// Styles renders entries for a terminal. The zero value renders plain text.
type Styles struct {
	Time     lipgloss.Style
	User     lipgloss.Style
	Agent    lipgloss.Style
	Title    lipgloss.Style
	Link     lipgloss.Style
	Action   lipgloss.Style
	Primary  lipgloss.Style
	Answered lipgloss.Style
}

// NewStyles builds the colored style set for the given renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Time:     r.NewStyle().Foreground(lipgloss.Color("241")),
		User:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Agent:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Title:    r.NewStyle().Bold(true).Underline(true),
		Link:     r.NewStyle().Foreground(lipgloss.Color("81")).Underline(true),
		Action:   r.NewStyle().Foreground(lipgloss.Color("252")),
		Primary:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Answered: r.NewStyle().Faint(true).Italic(true),
	}
}

// Render formats one entry as a block of lines.
func (s Styles) Render(e Entry) string {
	var b strings.Builder

	who := s.Agent.Render("Director")
	if e.Origin == types.OriginUser {
		who = s.User.Render("You")
	}
	fmt.Fprintf(&b, "%s %s", s.Time.Render(e.Timestamp.Format("15:04:05")), who)

	switch {
	case e.Title != "" || len(e.Slides) > 0:
		fmt.Fprintf(&b, "\n  %s (%d slides)", s.Title.Render(strawmanTitle(e)), len(e.Slides))
		for _, sl := range e.Slides {
			fmt.Fprintf(&b, "\n    %2d. %s", sl.Number, sl.Title)
		}
	case e.Kind != "" && e.Text == "" && e.Prompt == "" && e.URL == "":
		fmt.Fprintf(&b, " [%s]", e.Kind)
	}
	if e.Text != "" {
		for _, line := range strings.Split(strings.TrimRight(e.Text, "\n"), "\n") {
			fmt.Fprintf(&b, "\n  %s", line)
		}
	}
	if e.URL != "" {
		fmt.Fprintf(&b, "\n  %s", s.Link.Render(e.URL))
	}
	if e.Prompt != "" {
		fmt.Fprintf(&b, "\n  %s", e.Prompt)
	}
	if e.Answered {
		fmt.Fprintf(&b, "\n  %s", s.Answered.Render("(answered)"))
	} else {
		for i, a := range e.Actions {
			style := s.Action
			if a.Primary {
				style = s.Primary
			}
			fmt.Fprintf(&b, "\n  [%d] %s", i+1, style.Render(a.Label))
		}
	}
	return b.String()
}

func strawmanTitle(e Entry) string {
	if e.Title != "" {
		return e.Title
	}
	return "Strawman"
}

// TextExporter writes a human-readable transcript. Colors are only emitted
// when w is a terminal.
type TextExporter struct{}

func (e *TextExporter) Export(t *Transcript, w io.Writer) error {
	styles := NewStyles(lipgloss.NewRenderer(w))
	if _, err := fmt.Fprintf(w, "Session %s (%d entries)\n\n", t.SessionID, len(t.Entries)); err != nil {
		return err
	}
	for _, entry := range t.Entries {
		if _, err := fmt.Fprintf(w, "%s\n\n", styles.Render(entry)); err != nil {
			return err
		}
	}
	return nil
}

func (e *TextExporter) Extension() string {
	return "txt"
}

// MarkdownExporter writes the transcript as a Markdown document.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# Session %s\n\n", t.SessionID)
	_, _ = fmt.Fprintf(w, "**Entries:** %d\n\n---\n\n", len(t.Entries))

	for i, entry := range t.Entries {
		who := "Director"
		if entry.Origin == types.OriginUser {
			who = "You"
		}
		_, _ = fmt.Fprintf(w, "**%s** (%s)\n\n", who, entry.Timestamp.Format("2006-01-02 15:04:05Z"))
		if entry.Title != "" || len(entry.Slides) > 0 {
			_, _ = fmt.Fprintf(w, "### %s\n\n", strawmanTitle(entry))
			for _, sl := range entry.Slides {
				_, _ = fmt.Fprintf(w, "%d. %s\n", sl.Number, sl.Title)
			}
			_, _ = fmt.Fprintln(w)
		}
		if entry.Text != "" {
			_, _ = fmt.Fprintf(w, "%s\n\n", entry.Text)
		}
		if entry.URL != "" {
			_, _ = fmt.Fprintf(w, "<%s>\n\n", entry.URL)
		}
		if entry.Prompt != "" {
			_, _ = fmt.Fprintf(w, "> %s\n\n", entry.Prompt)
		}
		for _, a := range entry.Actions {
			mark := " "
			if entry.Answered {
				mark = "x"
			}
			_, _ = fmt.Fprintf(w, "- [%s] %s\n", mark, a.Label)
		}
		if len(entry.Actions) > 0 {
			_, _ = fmt.Fprintln(w)
		}
		if i < len(t.Entries)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}
	return nil
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}
