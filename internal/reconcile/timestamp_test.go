package reconcile

import (
	"testing"

	"github.com/user/deckster/internal/types"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  types.RawTimestamp
		want int64
	}{
		{"epoch number", types.EpochMillis(base), base},
		{"numeric string", types.StringTimestamp("1704103200000"), base},
		{"utc suffix", types.StringTimestamp("2024-01-01T10:00:00Z"), base},
		{"lowercase z", types.StringTimestamp("2024-01-01T10:00:00z"), base},
		{"no zone is utc", types.StringTimestamp("2024-01-01T10:00:00"), base},
		{"offset", types.StringTimestamp("2024-01-01T12:00:00+02:00"), base},
		{"space separator", types.StringTimestamp("2024-01-01 10:00:00"), base},
		{"fraction no zone", types.StringTimestamp("2024-01-01T10:00:00.123456"), base + 123},
		{"no seconds", types.StringTimestamp("2024-01-01T10:00"), base},
		{"date only", types.StringTimestamp("2024-01-01"), base - 10*3600*1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tt.raw.String(), err)
			}
			if got != tt.want {
				t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.raw.String(), got, tt.want)
			}
		})
	}
}

func TestParseTimestampErrors(t *testing.T) {
	for _, raw := range []types.RawTimestamp{
		{},
		types.StringTimestamp(""),
		types.StringTimestamp("yesterday"),
		types.StringTimestamp("2024-13-45T99:00:00"),
	} {
		if _, err := ParseTimestamp(raw); err == nil {
			t.Errorf("ParseTimestamp(%q): expected error", raw.String())
		}
	}
}

func TestNormalizeDegradesToZero(t *testing.T) {
	n := TimestampNormalizer{logger: discardLogger()}
	if got := n.Normalize("m1", types.StringTimestamp("not a time")); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := n.Normalize("m2", types.RawTimestamp{}); got != 0 {
		t.Errorf("expected 0 for missing, got %d", got)
	}
	if got := n.Normalize("m3", types.StringTimestamp("2024-01-01T10:00:00")); got != base {
		t.Errorf("expected %d, got %d", base, got)
	}
}
