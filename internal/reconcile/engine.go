package reconcile

import (
	"log/slog"

	"github.com/user/deckster/internal/types"
)

// Inputs is everything the engine reconciles in one pass. Arrival order
// matters only for tie-breaking: user records first, then restored
// history, then live events.
type Inputs struct {
	UserMessages []types.UserMessageRecord
	History      []*types.AgentEvent
	Live         []*types.AgentEvent
}

// Stats describes one reconciliation pass.
type Stats struct {
	Classified        map[Method]int `json:"classified"`
	IDDuplicates      int            `json:"id_duplicates"`
	ContentDuplicates int            `json:"content_duplicates"`
	WelcomeSuppressed int            `json:"welcome_suppressed"`
	Composites        int            `json:"composites"`
}

// Result is the reconciled transcript of one pass.
type Result struct {
	Items []Item `json:"items"`
	Stats Stats  `json:"stats"`
}

// Engine recomputes the transcript from scratch on every call. The only
// state carried between passes lives in the injected Context.
type Engine struct {
	ctx        *Context
	logger     *slog.Logger
	normalizer TimestampNormalizer
	classifier *Classifier
	assembler  *Assembler
	welcome    *WelcomeFilter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWelcomePatterns replaces DefaultWelcomePatterns.
func WithWelcomePatterns(patterns []string) Option {
	return func(e *Engine) {
		e.welcome = NewWelcomeFilter(patterns)
	}
}

func NewEngine(ctx *Context, opts ...Option) *Engine {
	e := &Engine{
		ctx:    ctx,
		logger: slog.Default().With("component", "reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.welcome == nil {
		e.welcome = NewWelcomeFilter(nil)
	}
	e.normalizer = TimestampNormalizer{logger: e.logger}
	e.classifier = &Classifier{ctx: ctx, logger: e.logger}
	e.assembler = &Assembler{answered: ctx.Answered(), logger: e.logger}
	return e
}

// Context returns the session-scoped state the engine folds over.
func (e *Engine) Context() *Context {
	return e.ctx
}

// Reconcile merges the inputs into one deduplicated, ordered, grouped
// transcript. It never fails: malformed input degrades with a diagnostic.
func (e *Engine) Reconcile(in Inputs) *Result {
	stats := Stats{Classified: make(map[Method]int)}

	// The answered tracker is replaced on Reset, so rebind every pass.
	e.assembler.answered = e.ctx.Answered()

	e.classifier.Seed(in.UserMessages)
	events := make([]*types.AgentEvent, 0, len(in.History)+len(in.Live))
	events = append(events, in.History...)
	events = append(events, in.Live...)

	// Hinted events register their text before any content lookup so the
	// result does not depend on where in the stream the hint arrived.
	for _, ev := range events {
		if ev != nil && ev.AuthorHint == types.OriginUser {
			e.classifier.Classify(ev)
		}
	}

	records := make([]Classified, 0, len(in.UserMessages)+len(events))
	for i := range in.UserMessages {
		rec := &in.UserMessages[i]
		records = append(records, Classified{
			ID:          rec.ID,
			Origin:      types.OriginUser,
			Method:      MethodUserRecord,
			TimestampMs: rec.TimestampMs,
			User:        rec,
		})
		stats.Classified[MethodUserRecord]++
	}
	for _, ev := range events {
		if ev == nil {
			continue
		}
		origin, method := e.classifier.Classify(ev)
		records = append(records, Classified{
			ID:          ev.MessageID,
			Origin:      origin,
			Method:      method,
			TimestampMs: e.normalizer.Normalize(ev.MessageID, ev.Timestamp),
			Event:       ev,
		})
		stats.Classified[method]++
	}

	inputIDs := make(map[types.MessageID]struct{}, len(records))
	for _, r := range records {
		inputIDs[r.ID] = struct{}{}
	}

	unique, dstats := Deduplicate(records)
	stats.IDDuplicates = dstats.IDDuplicates
	stats.ContentDuplicates = dstats.ContentDuplicates

	sorted := SortStable(unique)
	grouped, composites := e.assembler.Assemble(sorted)
	stats.Composites = composites

	items, suppressed := e.welcome.Apply(e.ctx, grouped, inputIDs)
	stats.WelcomeSuppressed = suppressed

	if dstats.IDDuplicates+dstats.ContentDuplicates+suppressed > 0 {
		e.logger.Debug("reconciled with drops",
			"session_id", string(e.ctx.SessionID()),
			"id_duplicates", dstats.IDDuplicates,
			"content_duplicates", dstats.ContentDuplicates,
			"welcome_suppressed", suppressed,
		)
	}
	return &Result{Items: items, Stats: stats}
}
