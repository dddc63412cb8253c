package reconcile

import (
	"reflect"
	"testing"

	"github.com/user/deckster/internal/types"
)

func sortedFrom(recs ...Classified) []Classified {
	return SortStable(recs)
}

func agentRec(e *types.AgentEvent) Classified {
	ms, _ := ParseTimestamp(e.Timestamp)
	return Classified{ID: e.MessageID, Origin: types.OriginAgent, TimestampMs: ms, Event: e}
}

func userItemRec(r types.UserMessageRecord) Classified {
	return Classified{ID: r.ID, Origin: types.OriginUser, TimestampMs: r.TimestampMs, User: &r}
}

func TestAssembleCompleteRun(t *testing.T) {
	a := &Assembler{answered: newAnsweredActions(), logger: discardLogger()}
	items, n := a.Assemble(sortedFrom(
		agentRec(chat("c1", base, "Drafting your outline")),
		agentRec(slide("s1", base+10)),
		userItemRec(userRec("user_1", "ok", base+15)),
		agentRec(presURL("u1", base+20)),
		agentRec(action("a1", base+30)),
		agentRec(chat("c2", base+40, "Anything else?")),
	))

	if n != 1 {
		t.Fatalf("expected 1 composite, got %d", n)
	}
	want := []types.MessageID{"c1", "strawman_s1", "user_1", "c2"}
	if got := ids(items); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	comp := items[1].Composite
	if comp == nil || comp.SlideUpdate.MessageID != "s1" || comp.PresentationURL.MessageID != "u1" || comp.ActionRequest.MessageID != "a1" {
		t.Fatalf("unexpected composite: %+v", comp)
	}
	if items[1].TimestampMs != base+10 {
		t.Errorf("composite should take the slide_update timestamp, got %d", items[1].TimestampMs)
	}
	if items[1].Kind != ItemComposite {
		t.Errorf("kind = %s", items[1].Kind)
	}
}

func TestAssemblePartialRuns(t *testing.T) {
	a := &Assembler{answered: newAnsweredActions(), logger: discardLogger()}

	t.Run("slide and url only", func(t *testing.T) {
		items, n := a.Assemble(sortedFrom(
			agentRec(slide("s1", base)),
			agentRec(presURL("u1", base+10)),
			agentRec(chat("c1", base+20, "done")),
		))
		if n != 1 || !reflect.DeepEqual(ids(items), []types.MessageID{"strawman_s1", "c1"}) {
			t.Fatalf("got %v (%d composites)", ids(items), n)
		}
		if items[0].Composite.ActionRequest != nil {
			t.Error("composite should have no action")
		}
	})

	t.Run("slide without url stays standalone", func(t *testing.T) {
		items, n := a.Assemble(sortedFrom(
			agentRec(slide("s1", base)),
			agentRec(chat("c1", base+10, "more soon")),
			agentRec(presURL("u1", base+20)),
		))
		if n != 0 || !reflect.DeepEqual(ids(items), []types.MessageID{"s1", "c1", "u1"}) {
			t.Fatalf("got %v (%d composites)", ids(items), n)
		}
	})

	t.Run("back to back runs", func(t *testing.T) {
		items, n := a.Assemble(sortedFrom(
			agentRec(slide("s1", base)),
			agentRec(presURL("u1", base+10)),
			agentRec(slide("s2", base+20)),
			agentRec(presURL("u2", base+30)),
			agentRec(action("a2", base+40)),
		))
		if n != 2 || !reflect.DeepEqual(ids(items), []types.MessageID{"strawman_s1", "strawman_s2"}) {
			t.Fatalf("got %v (%d composites)", ids(items), n)
		}
	})
}

func TestAssembleAnsweredFlag(t *testing.T) {
	answered := newAnsweredActions()
	answered.MarkAnswered("a1")
	answered.MarkAnswered("a2")
	a := &Assembler{answered: answered, logger: discardLogger()}

	items, _ := a.Assemble(sortedFrom(
		agentRec(slide("s1", base)),
		agentRec(presURL("u1", base+10)),
		agentRec(action("a1", base+20)),
		agentRec(action("a2", base+30)),
		agentRec(action("a3", base+40)),
	))
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %v", ids(items))
	}
	for i, want := range []bool{true, true, false} {
		if items[i].Answered != want {
			t.Errorf("item %s answered = %v, want %v", items[i].ID, items[i].Answered, want)
		}
	}
	if items[2].ActionRequest() == nil {
		t.Error("bare action_request should expose its prompt")
	}
}
