package reconcile

import (
	"strings"

	"github.com/user/deckster/internal/types"
)

// DefaultWelcomePatterns are the phrases that mark the Director's greeting.
var DefaultWelcomePatterns = []string{
	"welcome to deckster",
	"i'm the director",
	"i'm your ai presentation assistant",
	"what presentation would you like to create",
}

// WelcomeFilter keeps the first greeting banner of a session view and drops
// every later one from the transcript.
type WelcomeFilter struct {
	patterns []string
}

func NewWelcomeFilter(patterns []string) *WelcomeFilter {
	if len(patterns) == 0 {
		patterns = DefaultWelcomePatterns
	}
	f := &WelcomeFilter{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		if p = normalizeText(p); p != "" {
			f.patterns = append(f.patterns, p)
		}
	}
	return f
}

// IsWelcome reports whether the item is an agent chat message matching a
// greeting pattern.
func (f *WelcomeFilter) IsWelcome(it Item) bool {
	if it.Kind != ItemAgentEvent || it.Origin != types.OriginAgent || it.Event == nil {
		return false
	}
	if it.Event.Type != types.EventChatMessage {
		return false
	}
	text := normalizeText(it.Event.Text())
	for _, p := range f.patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Apply keeps the earliest greeting in the sorted items and drops the
// rest. The kept id is recorded on the context; a greeting arriving late
// with an earlier timestamp (restored history after a live banner) takes
// its place. Once a greeting has been accepted, a pass whose inputs no
// longer contain it keeps no greeting at all. inputs holds every record id
// fed to the pass, before deduplication; nil skips that check.
func (f *WelcomeFilter) Apply(ctx *Context, items []Item, inputs map[types.MessageID]struct{}) ([]Item, int) {
	lost := false
	if ctx.welcomeID != "" && inputs != nil {
		_, present := inputs[ctx.welcomeID]
		lost = !present
	}

	out := make([]Item, 0, len(items))
	kept := false
	dropped := 0
	for _, it := range items {
		if f.IsWelcome(it) {
			if kept || lost {
				dropped++
				continue
			}
			kept = true
			ctx.welcomeID = it.ID
		}
		out = append(out, it)
	}
	return out, dropped
}
