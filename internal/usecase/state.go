package usecase

import "fmt"

// ProductState is where a product stands in the grouping lifecycle.
type ProductState string

const (
	// StateUngrouped means the product belongs to no confirmed group.
	StateUngrouped ProductState = "ungrouped"
	// StateSuggested means the current pass proposes the product for a group.
	StateSuggested ProductState = "suggested"
	// StateGrouped means the product is a member of a confirmed group.
	StateGrouped ProductState = "grouped"
)

// stateEvent is something that happens to a product during review.
type stateEvent string

const (
	eventSuggested     stateEvent = "suggested"
	eventAccepted      stateEvent = "accepted"
	eventRejected      stateEvent = "rejected"
	eventManualGrouped stateEvent = "manual_grouped"
	eventUnlinked      stateEvent = "unlinked"
	eventDissolved     stateEvent = "dissolved"
)

// transition is the pure product-lifecycle step function. It returns the
// next state or an error when the event is not legal in the current state;
// callers translate those errors into their own typed failures. Grouped
// products never move straight into another group: they must be unlinked or
// their group dissolved first.
func transition(state ProductState, ev stateEvent) (ProductState, error) {
	switch state {
	case StateUngrouped:
		switch ev {
		case eventSuggested:
			return StateSuggested, nil
		case eventManualGrouped:
			return StateGrouped, nil
		case eventUnlinked, eventDissolved, eventRejected:
			// retries of operations that already took effect stay put
			return StateUngrouped, nil
		}
	case StateSuggested:
		switch ev {
		case eventAccepted, eventManualGrouped:
			return StateGrouped, nil
		case eventRejected:
			return StateUngrouped, nil
		case eventSuggested:
			return StateSuggested, nil
		}
	case StateGrouped:
		switch ev {
		case eventUnlinked, eventDissolved:
			return StateUngrouped, nil
		case eventManualGrouped, eventAccepted:
			return state, fmt.Errorf("product already grouped")
		}
	}
	return state, fmt.Errorf("illegal transition from %s on %s", state, ev)
}
