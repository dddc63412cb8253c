package reconcile

import "github.com/user/deckster/internal/types"

// AnsweredActions tracks which action_request prompts the user has answered
// during the current live session. Ids restored from history are never
// pre-marked, so a prompt answered on an earlier visit renders as
// interactive again.
type AnsweredActions struct {
	ids map[types.MessageID]struct{}
}

func newAnsweredActions() *AnsweredActions {
	return &AnsweredActions{ids: make(map[types.MessageID]struct{})}
}

// MarkAnswered records that the user responded to the prompt with the given id.
func (a *AnsweredActions) MarkAnswered(id types.MessageID) {
	if id == "" {
		return
	}
	a.ids[id] = struct{}{}
}

// IsAnswered reports whether the prompt's buttons should be suppressed.
func (a *AnsweredActions) IsAnswered(id types.MessageID) bool {
	_, ok := a.ids[id]
	return ok
}

func (a *AnsweredActions) Len() int {
	return len(a.ids)
}
