package domain

import "time"

// VariantGroup is a confirmed set of products that are variants of one
// another. Members are unique, at least two, and the main product is
// always one of them. A product belongs to at most one group.
type VariantGroup struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	MainProductID    string    `json:"mainProductId"`
	MemberProductIDs []string  `json:"memberProductIds"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HasMember reports whether productID is a member of the group.
func (g VariantGroup) HasMember(productID string) bool {
	for _, id := range g.MemberProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// FeedbackAction is the operator decision recorded by a feedback event.
type FeedbackAction string

const (
	FeedbackAccepted           FeedbackAction = "accepted"
	FeedbackRejected           FeedbackAction = "rejected"
	FeedbackManualGroupCreated FeedbackAction = "manual_group_created"
)

// FeedbackEvent records an operator decision about a suggestion or a manual
// grouping. Events are append-only; later detection passes fold them into
// per-pattern penalties. BaseKey carries the pattern the decision applies
// to, since suggestion IDs do not survive the pass that minted them.
type FeedbackEvent struct {
	ID           string            `json:"id"`
	SuggestionID string            `json:"suggestionId,omitempty"`
	BaseKey      string            `json:"baseKey,omitempty"`
	Action       FeedbackAction    `json:"action"`
	Confidence   float64           `json:"confidence"`
	Timestamp    time.Time         `json:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
