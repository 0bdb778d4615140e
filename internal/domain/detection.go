package domain

import "time"

// NormalizedKey is the tokenized form of a product's SKU (or title when the
// SKU is degenerate). Keys live only for the duration of one detection pass.
type NormalizedKey struct {
	ProductID     string   `json:"productId"`
	BaseTokens    []string `json:"baseTokens"`
	VariantTokens []string `json:"variantTokens,omitempty"`
}

// Empty reports whether the key carries no tokens at all. Empty keys never
// match any other key, including other empty keys.
func (k NormalizedKey) Empty() bool {
	return len(k.BaseTokens) == 0 && len(k.VariantTokens) == 0
}

// Tokens returns the full token sequence (base followed by variant part).
func (k NormalizedKey) Tokens() []string {
	out := make([]string, 0, len(k.BaseTokens)+len(k.VariantTokens))
	out = append(out, k.BaseTokens...)
	return append(out, k.VariantTokens...)
}

// Pattern describes a base-token pattern observed during a detection pass,
// along with the feedback standing that pattern has accumulated.
type Pattern struct {
	BaseKey      string   `json:"baseKey"`
	BaseTokens   []string `json:"baseTokens"`
	ProductCount int      `json:"productCount"`
	Confidence   float64  `json:"confidence"`
	Rejections   int      `json:"rejections,omitempty"`
	Suppressed   bool     `json:"suppressed,omitempty"`
}

// SuggestionStatus is the review state of a suggestion. Pending suggestions
// transition to accepted or rejected exactly once; both are terminal.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Suggestion is a proposed variant group awaiting operator review.
// IDs are ordinals assigned within one detection pass and are not
// meaningful across passes.
type Suggestion struct {
	ID               string           `json:"id"`
	BaseKey          string           `json:"baseKey"`
	MemberProductIDs []string         `json:"memberProductIds"`
	Confidence       float64          `json:"confidence"`
	Differences      []string         `json:"differences,omitempty"`
	Status           SuggestionStatus `json:"status"`
}

// DetectionConfig tunes one detection pass. Zero values are replaced with
// defaults before the pass runs; out-of-range values fail validation.
type DetectionConfig struct {
	Sensitivity     float64       `json:"sensitivity"`     // 0.1 - 1.0
	MinConfidence   float64       `json:"minConfidence"`   // 0.1 - 1.0
	MinGroupSize    int           `json:"minGroupSize"`    // >= 2
	MaxAnalysisTime time.Duration `json:"maxAnalysisTime"` // 0 = unbounded
}

const (
	DefaultSensitivity   = 0.6
	DefaultMinConfidence = 0.6
	DefaultMinGroupSize  = 2

	// DefaultRejectionLimit is how many rejections of the same base pattern
	// suppress it from future passes until feedback history is cleared.
	DefaultRejectionLimit = 3

	// DefaultPriceRatioLimit bounds how far member prices may diverge from
	// the cluster median before the price component decays.
	DefaultPriceRatioLimit = 5.0

	// DefaultLargeGroupSize is the member count above which cluster
	// confidence is progressively down-weighted.
	DefaultLargeGroupSize = 20
)

// DefaultDetectionConfig returns the stock pass configuration.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Sensitivity:   DefaultSensitivity,
		MinConfidence: DefaultMinConfidence,
		MinGroupSize:  DefaultMinGroupSize,
	}
}

// DetectionRequest is the complete input of one detection pass. Local and
// remote detectors consume the identical shape.
type DetectionRequest struct {
	Products          []Product       `json:"products"`
	Config            DetectionConfig `json:"config"`
	History           []FeedbackEvent `json:"history,omitempty"`
	GroupedProductIDs []string        `json:"groupedProductIds,omitempty"`
}

// DetectionResult is the output of one detection pass. Incomplete marks a
// pass that hit its analysis-time budget; its suggestions are partial and
// callers must not treat them as a full pass.
type DetectionResult struct {
	PassID      string        `json:"passId"`
	Suggestions []Suggestion  `json:"suggestions"`
	Patterns    []Pattern     `json:"patterns,omitempty"`
	Incomplete  bool          `json:"incomplete"`
	Elapsed     time.Duration `json:"elapsed"`
	GeneratedAt time.Time     `json:"generatedAt"`
}
