package reconcile

import (
	"log/slog"

	"github.com/user/deckster/internal/types"
)

// Classifier decides whether an agent event was authored by the user.
type Classifier struct {
	ctx    *Context
	logger *slog.Logger
}

// Seed registers the ids and texts of user records. Safe to repeat.
func (c *Classifier) Seed(records []types.UserMessageRecord) {
	for _, rec := range records {
		c.ctx.RegisterUser(rec.ID)
		c.ctx.indexContent(normalizeText(rec.Text), rec.ID)
	}
}

// Classify applies, in order: the explicit author hint, the known-id set,
// and the content fallback. Anything else is agent-authored.
func (c *Classifier) Classify(e *types.AgentEvent) (types.Origin, Method) {
	if e.AuthorHint == types.OriginUser {
		c.ctx.RegisterUser(e.MessageID)
		c.ctx.indexContent(normalizeText(e.Text()), e.MessageID)
		return types.OriginUser, MethodAuthorHint
	}

	if c.ctx.IsKnownUser(e.MessageID) {
		return types.OriginUser, MethodKnownID
	}

	// Best-effort bridge for events from before the author hint existed.
	// Identical text with different intent collides here.
	if userID, ok := c.ctx.lookupContent(normalizeText(e.Text())); ok {
		c.ctx.RegisterUser(e.MessageID)
		c.logger.Debug("classified by content match",
			"message_id", string(e.MessageID),
			"matched_user_message", string(userID),
			"method", string(MethodContent),
		)
		return types.OriginUser, MethodContent
	}

	return types.OriginAgent, MethodDefault
}
