// Package session owns one live session view: its inputs, its
// reconciliation context, and the recomputed transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/user/deckster/internal/reconcile"
	"github.com/user/deckster/internal/types"
)

var (
	ErrSendInFlight = errors.New("send already in flight")
	ErrEmptyMessage = errors.New("empty message")
	ErrNoSession    = errors.New("no active session")
)

// Deps are the collaborators a Controller talks to. Any of them may be nil:
// a nil History skips restore, a nil Persister skips persistence, a nil
// Transport keeps sends local.
type Deps struct {
	Cache     types.UserMessageCache
	History   types.HistoryStore
	Persister types.Persister
	Transport types.Transport
}

// Controller serializes every trigger (send, live event, restore
// completion, switch) and recomputes the transcript after each one.
type Controller struct {
	deps    Deps
	logger  *slog.Logger
	now     func() time.Time
	welcome []string

	mu        sync.Mutex
	rctx      *reconcile.Context
	engine    *reconcile.Engine
	cached    []types.UserMessageRecord
	restored  types.History
	live      []*types.AgentEvent
	persisted map[types.MessageID]struct{}
	result    *reconcile.Result
	subs      map[int]chan *reconcile.Result
	nextSub   int

	outbox    chan outbound
	forwards  sync.WaitGroup
	closeOnce sync.Once
}

// outbound is one user message waiting to be written to the transport.
type outbound struct {
	ctx context.Context
	sid types.SessionID
	rec types.UserMessageRecord
}

const outboxSize = 64

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithWelcomePatterns(patterns []string) Option {
	return func(c *Controller) { c.welcome = patterns }
}

// New creates a Controller bound to sessionID. An empty id leaves the
// controller idle until Switch.
func New(sessionID types.SessionID, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		deps:   deps,
		logger: slog.Default().With("component", "session"),
		now:    time.Now,
		subs:   make(map[int]chan *reconcile.Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rctx = reconcile.NewContext(sessionID)
	c.engine = reconcile.NewEngine(c.rctx,
		reconcile.WithLogger(c.logger),
		reconcile.WithWelcomePatterns(c.welcome),
	)
	c.persisted = make(map[types.MessageID]struct{})
	c.result = c.engine.Reconcile(reconcile.Inputs{})
	if deps.Transport != nil {
		c.outbox = make(chan outbound, outboxSize)
		go c.drainOutbox()
	}
	return c
}

// Open loads the user-message cache for the bound session.
func (c *Controller) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadCacheLocked()
}

func (c *Controller) loadCacheLocked() error {
	id := c.rctx.SessionID()
	if id == "" || c.deps.Cache == nil {
		c.recomputeLocked()
		return nil
	}
	records, err := c.deps.Cache.Load(id)
	if err != nil {
		c.recomputeLocked()
		return fmt.Errorf("load user cache: %w", err)
	}
	c.cached = records
	c.recomputeLocked()
	return nil
}

// SessionID returns the bound session.
func (c *Controller) SessionID() types.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rctx.SessionID()
}

// RestoreHistory fetches persisted history and folds it in. A restore that
// completes after a Switch is discarded.
func (c *Controller) RestoreHistory(ctx context.Context) error {
	if c.deps.History == nil {
		return nil
	}
	id := c.SessionID()
	if id == "" {
		return ErrNoSession
	}

	history, err := c.deps.History.Restore(ctx, id)
	if err != nil {
		return fmt.Errorf("restore history: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rctx.SessionID() != id {
		c.logger.Debug("discarding stale restore", "session_id", string(id))
		return nil
	}
	c.restored = *history
	for _, rec := range history.UserMessages {
		c.persisted[rec.ID] = struct{}{}
	}
	for _, ev := range history.AgentEvents {
		c.persisted[ev.MessageID] = struct{}{}
	}
	c.recomputeLocked()
	c.logger.Info("history restored",
		"session_id", string(id),
		"user_messages", len(history.UserMessages),
		"agent_events", len(history.AgentEvents),
	)
	return nil
}

// HandleEvent folds one live Director event into the transcript and hands
// it to persistence the first time its id is seen.
func (c *Controller) HandleEvent(e *types.AgentEvent) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.rctx.SessionID()
	if id == "" {
		return
	}
	if e.SessionID == "" {
		e.SessionID = id
	} else if e.SessionID != id {
		c.logger.Debug("ignoring event for other session", "message_id", string(e.MessageID), "session_id", string(e.SessionID))
		return
	}

	c.live = append(c.live, e)
	if _, ok := c.persisted[e.MessageID]; !ok && e.MessageID != "" {
		c.persisted[e.MessageID] = struct{}{}
		if req, err := types.EventPersistRequest(e); err != nil {
			c.logger.Warn("cannot persist event", "message_id", string(e.MessageID), "error", err)
		} else {
			c.enqueue(req)
		}
	}
	c.recomputeLocked()
}

// Send records text as a new user message, updates the transcript, and
// forwards the text to the Director without waiting for delivery. A call
// made while another Send is still updating local state fails with
// ErrSendInFlight.
func (c *Controller) Send(ctx context.Context, text string) (types.UserMessageRecord, error) {
	return c.send(ctx, text, "")
}

// send marks answer (when set) in the same critical section that acquires
// the send guard, so a rejected send never leaves a prompt answered.
func (c *Controller) send(ctx context.Context, text string, answer types.MessageID) (types.UserMessageRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.UserMessageRecord{}, ErrEmptyMessage
	}

	c.mu.Lock()
	id := c.rctx.SessionID()
	if id == "" {
		c.mu.Unlock()
		return types.UserMessageRecord{}, ErrNoSession
	}
	if !c.rctx.BeginSend() {
		c.mu.Unlock()
		return types.UserMessageRecord{}, ErrSendInFlight
	}
	if answer != "" {
		c.rctx.Answered().MarkAnswered(answer)
	}
	rec := types.UserMessageRecord{
		ID:          types.NewMessageID(),
		Text:        text,
		TimestampMs: c.now().UnixMilli(),
	}
	snapshot := append(slices.Clone(c.cached), rec)
	c.mu.Unlock()

	if c.deps.Cache != nil {
		if err := c.deps.Cache.Save(id, snapshot); err != nil {
			c.logger.Warn("user cache write failed", "session_id", string(id), "error", err)
		}
	}

	c.mu.Lock()
	if c.rctx.SessionID() != id {
		// Switched away mid-send; the new session's guard is already idle.
		c.mu.Unlock()
		return rec, fmt.Errorf("session switched during send: %w", ErrNoSession)
	}
	c.cached = snapshot
	c.persisted[rec.ID] = struct{}{}
	c.enqueue(types.UserPersistRequest(id, rec))
	c.recomputeLocked()
	c.rctx.EndSend()
	c.mu.Unlock()

	c.forward(ctx, id, rec)
	return rec, nil
}

// forward queues rec for the transport. One worker drains the queue, so
// messages reach the Director in the order they were sent.
func (c *Controller) forward(ctx context.Context, id types.SessionID, rec types.UserMessageRecord) {
	if c.outbox == nil {
		return
	}
	c.forwards.Add(1)
	c.outbox <- outbound{ctx: ctx, sid: id, rec: rec}
}

func (c *Controller) drainOutbox() {
	for m := range c.outbox {
		if err := c.deps.Transport.Send(m.ctx, m.rec.Text); err != nil {
			c.logger.Error("send to director failed", "session_id", string(m.sid), "message_id", string(m.rec.ID), "error", err)
		}
		c.forwards.Done()
	}
}

// Respond marks the action prompt answered and sends the chosen value. If
// the send is rejected the prompt stays unanswered.
func (c *Controller) Respond(ctx context.Context, actionID types.MessageID, action types.Action) (types.UserMessageRecord, error) {
	text := action.Value
	if strings.TrimSpace(text) == "" {
		text = action.Label
	}
	return c.send(ctx, text, actionID)
}

// IsAnswered reports whether the prompt was answered in this session view.
func (c *Controller) IsAnswered(actionID types.MessageID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rctx.Answered().IsAnswered(actionID)
}

// Switch rebinds the controller to another session, discarding every
// session-scoped flag and in-memory input, then loads that session's cache.
func (c *Controller) Switch(sessionID types.SessionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rctx.Reset(sessionID)
	c.cached = nil
	c.restored = types.History{}
	c.live = nil
	c.persisted = make(map[types.MessageID]struct{})
	c.logger.Info("switched session", "session_id", string(sessionID))
	return c.loadCacheLocked()
}

// Transcript returns the latest reconciled transcript.
func (c *Controller) Transcript() *reconcile.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Subscribe returns a channel that receives the transcript after every
// recomputation. Slow readers only see the latest transcript.
func (c *Controller) Subscribe() (<-chan *reconcile.Result, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan *reconcile.Result, 1)
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.result

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Wait blocks until queued transport forwards finish.
func (c *Controller) Wait() {
	c.forwards.Wait()
}

// Close waits for queued forwards and stops the transport worker. The
// controller must not send afterwards.
func (c *Controller) Close() {
	c.Wait()
	c.closeOnce.Do(func() {
		if c.outbox != nil {
			close(c.outbox)
		}
	})
}

func (c *Controller) enqueue(req *types.PersistRequest) {
	if c.deps.Persister == nil {
		return
	}
	if err := c.deps.Persister.Enqueue(req); err != nil {
		c.logger.Warn("persist enqueue failed", "message_id", string(req.ID), "error", err)
	}
}

func (c *Controller) recomputeLocked() {
	users := make([]types.UserMessageRecord, 0, len(c.cached)+len(c.restored.UserMessages))
	users = append(users, c.cached...)
	users = append(users, c.restored.UserMessages...)

	c.result = c.engine.Reconcile(reconcile.Inputs{
		UserMessages: users,
		History:      c.restored.AgentEvents,
		Live:         c.live,
	})
	for _, ch := range c.subs {
		select {
		case ch <- c.result:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- c.result
		}
	}
}

// Snapshot reconciles a stored session from scratch: cache plus restored
// history, with a fresh context and no live stream.
func Snapshot(ctx context.Context, sessionID types.SessionID, deps Deps, opts ...Option) (*reconcile.Result, error) {
	deps.Persister = nil
	deps.Transport = nil
	c := New(sessionID, deps, opts...)
	if err := c.Open(); err != nil {
		return nil, err
	}
	if err := c.RestoreHistory(ctx); err != nil {
		return nil, err
	}
	return c.Transcript(), nil
}
