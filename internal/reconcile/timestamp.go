package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/user/deckster/internal/types"
)

var errMissingTimestamp = errors.New("missing timestamp")

// zoneSuffix matches an explicit zone at the end of the time-of-day part.
var zoneSuffix = regexp.MustCompile(`(?i)(z|[+-]\d{2}(:?\d{2})?)$`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04Z07:00",
}

// ParseTimestamp converts a raw timestamp to epoch milliseconds. Strings
// without a zone are read as UTC; the local zone of the process is never
// consulted.
func ParseTimestamp(raw types.RawTimestamp) (int64, error) {
	switch raw.Kind {
	case types.TimestampNumber:
		return raw.Millis, nil
	case types.TimestampMissing:
		return 0, errMissingTimestamp
	}

	s := strings.TrimSpace(raw.Text)
	if s == "" {
		return 0, errMissingTimestamp
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}

	// "2024-01-01 10:00:00" is a common serializer default.
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	sep := strings.IndexAny(s, "Tt")
	if sep < 0 {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", raw.Text, err)
		}
		return t.UnixMilli(), nil
	}
	s = s[:sep] + "T" + s[sep+1:]
	if !zoneSuffix.MatchString(s[sep+1:]) {
		s += "Z"
	} else if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}

	var lastErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UnixMilli(), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("parse timestamp %q: %w", raw.Text, lastErr)
}

// TimestampNormalizer wraps ParseTimestamp with the engine's no-throw
// contract: failures become epoch 0 plus a diagnostic.
type TimestampNormalizer struct {
	logger *slog.Logger
}

func (n TimestampNormalizer) Normalize(id types.MessageID, raw types.RawTimestamp) int64 {
	ms, err := ParseTimestamp(raw)
	if err != nil {
		n.logger.Warn("unusable timestamp, ordering first", "message_id", string(id), "raw", raw.String(), "error", err)
		return 0
	}
	return ms
}
