package reconcile

import "github.com/user/deckster/internal/types"

// DedupStats counts what Deduplicate dropped.
type DedupStats struct {
	IDDuplicates      int
	ContentDuplicates int
}

// Deduplicate keeps at most one record per logical message. Id collisions
// keep the earlier arrival. Records sharing normalized text keep a
// user-origin record if there is one, and among user-origin records the
// client's own UserMessageRecord over any echo of it. Remaining ties go to
// the earliest timestamp, then the earlier arrival. Input order is
// preserved.
func Deduplicate(in []Classified) ([]Classified, DedupStats) {
	var stats DedupStats

	seen := make(map[types.MessageID]struct{}, len(in))
	byID := make([]Classified, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ID]; ok {
			stats.IDDuplicates++
			continue
		}
		seen[c.ID] = struct{}{}
		byID = append(byID, c)
	}

	winner := make(map[string]int)
	for i, c := range byID {
		key := c.ContentKey()
		if key == "" {
			continue
		}
		w, ok := winner[key]
		if !ok || beats(c, byID[w]) {
			winner[key] = i
		}
	}

	out := make([]Classified, 0, len(byID))
	for i, c := range byID {
		if key := c.ContentKey(); key != "" && winner[key] != i {
			stats.ContentDuplicates++
			continue
		}
		out = append(out, c)
	}
	return out, stats
}

func beats(c, cur Classified) bool {
	cu, wu := c.Origin == types.OriginUser, cur.Origin == types.OriginUser
	if cu != wu {
		return cu
	}
	if cr, wr := c.User != nil, cur.User != nil; cr != wr {
		return cr
	}
	return c.TimestampMs < cur.TimestampMs
}
