package reconcile

import (
	"reflect"
	"testing"

	"github.com/user/deckster/internal/types"
)

func classified(id string, origin types.Origin, ms int64, text string) Classified {
	return Classified{
		ID:          types.MessageID(id),
		Origin:      origin,
		TimestampMs: ms,
		Event:       chat(id, ms, text),
	}
}

func TestDeduplicate(t *testing.T) {
	tests := []struct {
		name        string
		in          []Classified
		want        []types.MessageID
		wantID      int
		wantContent int
	}{
		{
			name: "id collision keeps earlier arrival",
			in: []Classified{
				classified("m1", types.OriginUser, base, "hello"),
				classified("m1", types.OriginAgent, base+5, "hello again"),
			},
			want:   []types.MessageID{"m1"},
			wantID: 1,
		},
		{
			name: "content collision prefers user origin",
			in: []Classified{
				classified("echo", types.OriginAgent, base, "Make it blue"),
				classified("user_1", types.OriginUser, base+50, "make it blue"),
			},
			want:        []types.MessageID{"user_1"},
			wantContent: 1,
		},
		{
			name: "user record beats an earlier user-origin echo",
			in: []Classified{
				{ID: "user_1", Origin: types.OriginUser, TimestampMs: base + 50, User: &types.UserMessageRecord{ID: "user_1", Text: "Hello", TimestampMs: base + 50}},
				classified("srv-9", types.OriginUser, base, "hello"),
			},
			want:        []types.MessageID{"user_1"},
			wantContent: 1,
		},
		{
			name: "same origin keeps earliest timestamp",
			in: []Classified{
				classified("late", types.OriginAgent, base+100, "Welcome to Deckster"),
				classified("early", types.OriginAgent, base, "welcome to deckster"),
			},
			want:        []types.MessageID{"early"},
			wantContent: 1,
		},
		{
			name: "records without text are never merged",
			in: []Classified{
				{ID: "s1", Origin: types.OriginAgent, TimestampMs: base, Event: slide("s1", base)},
				{ID: "s2", Origin: types.OriginAgent, TimestampMs: base, Event: slide("s2", base)},
			},
			want: []types.MessageID{"s1", "s2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, stats := Deduplicate(tt.in)
			got := make([]types.MessageID, len(out))
			for i, c := range out {
				got[i] = c.ID
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if stats.IDDuplicates != tt.wantID || stats.ContentDuplicates != tt.wantContent {
				t.Errorf("stats = %+v, want id=%d content=%d", stats, tt.wantID, tt.wantContent)
			}
		})
	}
}

func TestSortStable(t *testing.T) {
	in := []Classified{
		classified("c", types.OriginAgent, base+20, "c"),
		classified("a", types.OriginAgent, base, "a"),
		classified("tie1", types.OriginUser, base+10, "t1"),
		classified("tie2", types.OriginAgent, base+10, "t2"),
		classified("zero", types.OriginAgent, 0, "z"),
	}
	out := SortStable(in)

	want := []types.MessageID{"zero", "a", "tie1", "tie2", "c"}
	for i, c := range out {
		if c.ID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, c.ID, want[i])
		}
	}
	if in[0].ID != "c" {
		t.Error("SortStable must not reorder its input")
	}
}
