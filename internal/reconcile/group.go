package reconcile

import (
	"log/slog"

	"github.com/user/deckster/internal/types"
)

// Assembler collapses slide_update, presentation_url and action_request
// runs in the agent subsequence into strawman composite records.
type Assembler struct {
	answered *AnsweredActions
	logger   *slog.Logger
}

// kindOf reads the discriminant from the payload itself so a payload type
// added to types without a case here is reported rather than misgrouped.
func (a *Assembler) kindOf(e *types.AgentEvent) types.EventType {
	switch e.Payload.(type) {
	case types.ChatPayload:
		return types.EventChatMessage
	case types.ActionRequestPayload:
		return types.EventActionRequest
	case types.SlideUpdatePayload:
		return types.EventSlideUpdate
	case types.PresentationURLPayload:
		return types.EventPresentationURL
	case types.OtherPayload:
		return types.EventOther
	default:
		a.logger.Warn("unhandled payload kind", "message_id", string(e.MessageID), "type", string(e.Type))
		return types.EventOther
	}
}

// Assemble walks the sorted records. Agent events are fed left to right
// through a greedy automaton (Scanning, AwaitingUrl, AwaitingAction) using
// an integer cursor over the agent positions, so every event is consumed at
// most once. A composite takes the position of its slide_update; user
// records keep theirs.
func (a *Assembler) Assemble(sorted []Classified) ([]Item, int) {
	agent := make([]int, 0, len(sorted))
	for i, c := range sorted {
		if c.Origin == types.OriginAgent && c.Event != nil {
			agent = append(agent, i)
		}
	}

	kindAt := func(cur int) types.EventType {
		if cur >= len(agent) {
			return ""
		}
		return a.kindOf(sorted[agent[cur]].Event)
	}

	emit := make([]*Item, len(sorted))
	composites := 0
	for cur := 0; cur < len(agent); {
		pos := agent[cur]
		c := sorted[pos]

		if kindAt(cur) != types.EventSlideUpdate {
			it := a.agentItem(c)
			emit[pos] = &it
			cur++
			continue
		}

		// AwaitingUrl
		if kindAt(cur+1) != types.EventPresentationURL {
			it := a.agentItem(c)
			emit[pos] = &it
			cur++
			continue
		}
		comp := &CompositeRecord{
			ID:              types.CompositeID(c.ID),
			Kind:            ItemComposite,
			SlideUpdate:     c.Event,
			PresentationURL: sorted[agent[cur+1]].Event,
		}
		next := cur + 2

		// AwaitingAction
		if kindAt(next) == types.EventActionRequest {
			comp.ActionRequest = sorted[agent[next]].Event
			next++
		}

		it := Item{
			Kind:        ItemComposite,
			ID:          comp.ID,
			Origin:      types.OriginAgent,
			TimestampMs: c.TimestampMs,
			Composite:   comp,
		}
		if comp.ActionRequest != nil {
			it.Answered = a.answered.IsAnswered(comp.ActionRequest.MessageID)
		}
		emit[pos] = &it
		composites++
		cur = next
	}

	out := make([]Item, 0, len(sorted))
	for i, c := range sorted {
		if c.Origin != types.OriginAgent || c.Event == nil {
			out = append(out, itemFromClassified(c))
			continue
		}
		if emit[i] != nil {
			out = append(out, *emit[i])
		}
	}
	return out, composites
}

func (a *Assembler) agentItem(c Classified) Item {
	it := itemFromClassified(c)
	if a.kindOf(c.Event) == types.EventActionRequest {
		it.Answered = a.answered.IsAnswered(c.ID)
	}
	return it
}
