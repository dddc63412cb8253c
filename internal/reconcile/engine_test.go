package reconcile

import (
	"reflect"
	"testing"

	"github.com/user/deckster/internal/types"
)

func TestReconcileIdempotent(t *testing.T) {
	e := newTestEngine()
	in := Inputs{
		UserMessages: []types.UserMessageRecord{userRec("user_1", "Make a deck about owls", base+100)},
		History: []*types.AgentEvent{
			chat("w1", base, "Welcome to Deckster!"),
			chat("echo1", base+100, "make a deck about owls"),
			slide("s1", base+200),
		},
		Live: []*types.AgentEvent{
			presURL("u1", base+300),
			action("a1", base+400),
			chat("w2", base+500, "Welcome to Deckster! Picking up where we left off."),
		},
	}

	first := e.Reconcile(in)
	second := e.Reconcile(in)
	if !reflect.DeepEqual(first.Items, second.Items) {
		t.Fatalf("passes differ:\n%v\n%v", ids(first.Items), ids(second.Items))
	}
	want := []types.MessageID{"w1", "user_1", "strawman_s1"}
	if got := ids(first.Items); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReconcileUniqueIDs(t *testing.T) {
	e := newTestEngine()
	res := e.Reconcile(Inputs{
		UserMessages: []types.UserMessageRecord{userRec("user_1", "hi", base)},
		History:      []*types.AgentEvent{chat("user_1", base, "hi"), chat("a", base+1, "hello")},
		Live:         []*types.AgentEvent{chat("a", base+1, "hello"), chat("b", base+2, "next")},
	})
	seen := map[types.MessageID]bool{}
	for _, it := range res.Items {
		if seen[it.ID] {
			t.Fatalf("id %s appears twice", it.ID)
		}
		seen[it.ID] = true
	}
	if len(res.Items) != 3 {
		t.Errorf("expected 3 items, got %v", ids(res.Items))
	}
	if res.Stats.IDDuplicates != 2 {
		t.Errorf("expected 2 id duplicates, got %d", res.Stats.IDDuplicates)
	}
}

func TestReconcileUserPrecedence(t *testing.T) {
	e := newTestEngine()
	res := e.Reconcile(Inputs{
		UserMessages: []types.UserMessageRecord{userRec("user_1", "Add a slide about diet", base)},
		Live:         []*types.AgentEvent{chat("srv-9", base, "  add a slide about DIET")},
	})
	if len(res.Items) != 1 {
		t.Fatalf("expected the echo to collapse, got %v", ids(res.Items))
	}
	it := res.Items[0]
	if it.ID != "user_1" || it.Origin != types.OriginUser || it.Kind != ItemUserMessage {
		t.Errorf("expected the user record to win, got %+v", it)
	}
	if res.Stats.Classified[MethodContent] != 1 {
		t.Errorf("expected one content classification, got %v", res.Stats.Classified)
	}
}

func TestReconcileUserRecordBeatsEarlierEcho(t *testing.T) {
	e := newTestEngine()
	res := e.Reconcile(Inputs{
		UserMessages: []types.UserMessageRecord{userRec("user_1", "Hello", base+50)},
		Live:         []*types.AgentEvent{chat("srv-9", base, "Hello")},
	})
	if len(res.Items) != 1 {
		t.Fatalf("expected the echo to collapse, got %v", ids(res.Items))
	}
	if it := res.Items[0]; it.ID != "user_1" || it.Kind != ItemUserMessage {
		t.Errorf("echo with an earlier server timestamp replaced the user record: %+v", it)
	}
	if res.Stats.ContentDuplicates != 1 {
		t.Errorf("expected 1 content duplicate, got %d", res.Stats.ContentDuplicates)
	}
}

func TestReconcileTimestampTolerance(t *testing.T) {
	e := newTestEngine()
	res := e.Reconcile(Inputs{
		History: []*types.AgentEvent{
			event("zoneless", types.StringTimestamp("2024-01-01T10:00:05"), types.ChatPayload{Text: "five"}),
			event("broken", types.StringTimestamp("??"), types.ChatPayload{Text: "broken"}),
		},
		Live: []*types.AgentEvent{
			event("epoch", types.EpochMillis(base+1000), types.ChatPayload{Text: "one"}),
			event("offset", types.StringTimestamp("2024-01-01T12:00:03+02:00"), types.ChatPayload{Text: "three"}),
		},
	})
	want := []types.MessageID{"broken", "epoch", "offset", "zoneless"}
	if got := ids(res.Items); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if res.Items[0].TimestampMs != 0 {
		t.Errorf("unparseable timestamp should normalize to 0, got %d", res.Items[0].TimestampMs)
	}
}

func TestReconcileWelcomeEarliestWins(t *testing.T) {
	e := newTestEngine()
	res := e.Reconcile(Inputs{
		Live:    []*types.AgentEvent{chat("live-w", base+5000, "Welcome to Deckster! I'm the Director.")},
		History: []*types.AgentEvent{chat("hist-w", base, "Hi, welcome to Deckster.")},
	})
	if got := ids(res.Items); !reflect.DeepEqual(got, []types.MessageID{"hist-w"}) {
		t.Fatalf("got %v", got)
	}
	if res.Stats.WelcomeSuppressed != 1 {
		t.Errorf("suppressed = %d", res.Stats.WelcomeSuppressed)
	}
	if e.Context().WelcomeID() != "hist-w" {
		t.Errorf("welcome id = %q", e.Context().WelcomeID())
	}
}

func TestReconcileWelcomeSeenSuppressesNewGreeting(t *testing.T) {
	e := newTestEngine()
	e.Reconcile(Inputs{Live: []*types.AgentEvent{chat("w1", base, "Welcome to Deckster!")}})
	if !e.Context().WelcomeSeen() {
		t.Fatal("first greeting should be accepted")
	}

	res := e.Reconcile(Inputs{Live: []*types.AgentEvent{
		chat("w2", base+10, "Welcome to Deckster!"),
		chat("c1", base+20, "What is the topic?"),
	}})
	if got := ids(res.Items); !reflect.DeepEqual(got, []types.MessageID{"c1"}) {
		t.Fatalf("got %v", got)
	}
	if res.Stats.WelcomeSuppressed != 1 || e.Context().WelcomeID() != "w1" {
		t.Errorf("suppressed = %d, welcome id = %q", res.Stats.WelcomeSuppressed, e.Context().WelcomeID())
	}
}

func TestReconcileAnsweredRestorePolicy(t *testing.T) {
	in := Inputs{History: []*types.AgentEvent{action("a1", base)}}

	e := newTestEngine()
	if res := e.Reconcile(in); res.Items[0].Answered {
		t.Fatal("restored prompt must render unanswered")
	}

	e.Context().Answered().MarkAnswered("a1")
	if res := e.Reconcile(in); !res.Items[0].Answered {
		t.Fatal("prompt answered in this session must be flagged")
	}

	e.Context().Reset(testSession)
	if res := e.Reconcile(in); res.Items[0].Answered {
		t.Fatal("reset must clear answered prompts")
	}

	fresh := newTestEngine()
	if res := fresh.Reconcile(in); res.Items[0].Answered {
		t.Fatal("a new context must not inherit answered prompts")
	}
}

func TestReconcileGroupingAcrossSources(t *testing.T) {
	e := newTestEngine()
	res := e.Reconcile(Inputs{
		UserMessages: []types.UserMessageRecord{userRec("user_1", "looks great", base+250)},
		History:      []*types.AgentEvent{slide("s1", base+100), presURL("u1", base+200)},
		Live:         []*types.AgentEvent{action("a1", base+300)},
	})
	want := []types.MessageID{"strawman_s1", "user_1"}
	if got := ids(res.Items); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if res.Items[0].ActionRequest() == nil || res.Items[0].ActionRequest().MessageID != "a1" {
		t.Error("composite should absorb the live action_request")
	}
	if res.Stats.Composites != 1 {
		t.Errorf("composites = %d", res.Stats.Composites)
	}
}

func TestReconcileUnknownEventPassesThrough(t *testing.T) {
	e := newTestEngine()
	other := event("x1", types.EpochMillis(base), types.OtherPayload{Type: "typing_indicator"})
	res := e.Reconcile(Inputs{Live: []*types.AgentEvent{other, nil}})
	if len(res.Items) != 1 || res.Items[0].Event.Type != types.EventOther {
		t.Fatalf("unknown event should pass through, got %+v", res.Items)
	}
}

func TestReconcileHintOrderIndependent(t *testing.T) {
	echo := chat("srv-1", base+10, "use a dark theme")
	hint := hinted("hint-1", base, "Use a dark theme")

	a := newTestEngine().Reconcile(Inputs{Live: []*types.AgentEvent{echo, hint}})
	b := newTestEngine().Reconcile(Inputs{Live: []*types.AgentEvent{hint, echo}})
	if !reflect.DeepEqual(ids(a.Items), ids(b.Items)) {
		t.Errorf("arrival order changed the result: %v vs %v", ids(a.Items), ids(b.Items))
	}
	if len(a.Items) != 1 || a.Items[0].ID != "hint-1" {
		t.Errorf("expected the hinted message to survive, got %v", ids(a.Items))
	}
}
