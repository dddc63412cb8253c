package reconcile

import (
	"testing"

	"github.com/user/deckster/internal/types"
)

func TestIsWelcome(t *testing.T) {
	f := NewWelcomeFilter(nil)
	tests := []struct {
		name string
		it   Item
		want bool
	}{
		{"greeting", Item{Kind: ItemAgentEvent, Origin: types.OriginAgent, Event: chat("w", base, "Hello! Welcome to Deckster.")}, true},
		{"case insensitive", Item{Kind: ItemAgentEvent, Origin: types.OriginAgent, Event: chat("w", base, "I'M THE DIRECTOR")}, true},
		{"plain chat", Item{Kind: ItemAgentEvent, Origin: types.OriginAgent, Event: chat("c", base, "Here is your outline")}, false},
		{"user typed it", Item{Kind: ItemAgentEvent, Origin: types.OriginUser, Event: chat("u", base, "welcome to deckster")}, false},
		{"not chat", Item{Kind: ItemAgentEvent, Origin: types.OriginAgent, Event: slide("s", base)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IsWelcome(tt.it); got != tt.want {
				t.Errorf("IsWelcome = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWelcomeFilterKeepsEarliest(t *testing.T) {
	ctx := NewContext(testSession)
	f := NewWelcomeFilter([]string{"welcome"})
	items := []Item{
		{Kind: ItemAgentEvent, ID: "w1", Origin: types.OriginAgent, Event: chat("w1", base, "Welcome!")},
		{Kind: ItemAgentEvent, ID: "c1", Origin: types.OriginAgent, Event: chat("c1", base+1, "What topic?")},
		{Kind: ItemAgentEvent, ID: "w2", Origin: types.OriginAgent, Event: chat("w2", base+2, "Welcome back!")},
	}
	out, dropped := f.Apply(ctx, items, nil)
	if dropped != 1 || len(out) != 2 || out[0].ID != "w1" {
		t.Fatalf("got %v, dropped %d", ids(out), dropped)
	}
	if !ctx.WelcomeSeen() || ctx.WelcomeID() != "w1" {
		t.Errorf("context should record w1, got %q", ctx.WelcomeID())
	}
}

func TestWelcomeFilterDropsWhenAcceptedMissing(t *testing.T) {
	ctx := NewContext(testSession)
	f := NewWelcomeFilter([]string{"welcome"})
	w1 := Item{Kind: ItemAgentEvent, ID: "w1", Origin: types.OriginAgent, Event: chat("w1", base, "Welcome!")}
	w2 := Item{Kind: ItemAgentEvent, ID: "w2", Origin: types.OriginAgent, Event: chat("w2", base+5, "Welcome again!")}

	f.Apply(ctx, []Item{w1}, map[types.MessageID]struct{}{"w1": {}})
	out, dropped := f.Apply(ctx, []Item{w2}, map[types.MessageID]struct{}{"w2": {}})
	if len(out) != 0 || dropped != 1 {
		t.Fatalf("expected second greeting suppressed, got %v dropped %d", ids(out), dropped)
	}
	if ctx.WelcomeID() != "w1" {
		t.Errorf("accepted greeting should stay w1, got %q", ctx.WelcomeID())
	}
}
