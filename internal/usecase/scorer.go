package usecase

import (
	"sort"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// Weights for the token-quality component of a cluster's confidence.
const (
	weightTokenOverlap = 0.7 // share of each member's tokens also seen in other members
	weightBaseLength   = 0.3 // longer common bases are stronger evidence
)

// rejectionPenalties is the frequency-penalty table applied to a base
// pattern that operators rejected before: index is the prior rejection
// count, value the multiplier. Counts past the end of the table use the
// last entry; counts at or above the configured rejection limit suppress
// the pattern entirely (handled by rejectionPenalty).
var rejectionPenalties = []float64{1.0, 0.6, 0.3, 0.15}

// scoreCluster converts cluster match quality into a confidence in [0, 1].
//
// The token component (overlap ratio and base length) is weighted additively
// and then scaled by coherence factors for category, price, and cluster
// size, and finally by the feedback penalty for the cluster's base pattern.
// Every factor lies in [0, 1] and degrades under dilution, so appending a
// member that shares no tokens and no coherence with the cluster can never
// raise the score.
func scoreCluster(members []domain.Product, keys map[string]domain.NormalizedKey, baseTokens []string, opts DetectorOptions, rejections int) float64 {
	if len(members) == 0 {
		return 0
	}

	tokenComponent := weightTokenOverlap*tokenOverlapRatio(members, keys) +
		weightBaseLength*baseLengthScore(len(baseTokens))

	score := tokenComponent *
		categoryFactor(members) *
		priceFactor(members, opts.PriceRatioLimit) *
		sizeFactor(len(members), opts.LargeGroupSize) *
		rejectionPenalty(rejections, opts.RejectionLimit)

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// tokenOverlapRatio is the mean, over all members, of the fraction of a
// member's tokens that appear in at least one other member. A member that
// shares nothing contributes zero and dilutes the mean.
func tokenOverlapRatio(members []domain.Product, keys map[string]domain.NormalizedKey) float64 {
	counts := make(map[string]int)
	for _, m := range members {
		seen := make(map[string]bool)
		for _, t := range keys[m.ID].Tokens() {
			if !seen[t] {
				counts[t]++
				seen[t] = true
			}
		}
	}

	var total float64
	for _, m := range members {
		tokens := keys[m.ID].Tokens()
		if len(tokens) == 0 {
			continue
		}
		shared := 0
		seen := make(map[string]bool)
		for _, t := range tokens {
			if seen[t] {
				continue
			}
			seen[t] = true
			if counts[t] > 1 {
				shared++
			}
		}
		total += float64(shared) / float64(len(seen))
	}
	return total / float64(len(members))
}

// baseLengthScore saturates toward 1 as the common base grows: a one-token
// base is weak evidence, three or more tokens are strong.
func baseLengthScore(baseLen int) float64 {
	if baseLen <= 0 {
		return 0
	}
	return float64(baseLen) / float64(baseLen+1)
}

// categoryFactor is the share of members in the modal category. Members
// without a category are neutral; a cluster spanning several categories is
// cut down hard enough that it cannot clear the default confidence floor.
func categoryFactor(members []domain.Product) float64 {
	counts := make(map[string]int)
	total := 0
	for _, m := range members {
		if m.Category == "" {
			continue
		}
		counts[m.Category]++
		total++
	}
	if total <= 1 {
		return 1
	}
	modal := 0
	for _, c := range counts {
		if c > modal {
			modal = c
		}
	}
	return float64(modal) / float64(total)
}

// priceFactor is the share of priced members whose price stays within
// ratioLimit of the cluster median. Unpriced members are neutral.
func priceFactor(members []domain.Product, ratioLimit float64) float64 {
	var prices []float64
	for _, m := range members {
		if m.Price > 0 {
			prices = append(prices, m.Price)
		}
	}
	if len(prices) < 2 || ratioLimit <= 0 {
		return 1
	}

	sort.Float64s(prices)
	median := prices[len(prices)/2]
	if len(prices)%2 == 0 {
		median = (prices[len(prices)/2-1] + prices[len(prices)/2]) / 2
	}
	if median <= 0 {
		return 1
	}

	within := 0
	for _, p := range prices {
		if p >= median/ratioLimit && p <= median*ratioLimit {
			within++
		}
	}
	return float64(within) / float64(len(prices))
}

// sizeFactor down-weights implausibly large clusters, which are usually
// tokenizer false positives rather than real variant families.
func sizeFactor(n, largeGroupSize int) float64 {
	if largeGroupSize <= 0 || n <= largeGroupSize {
		return 1
	}
	return float64(largeGroupSize) / float64(n)
}

// rejectionPenalty looks up the penalty for a base pattern's prior rejection
// count. At or beyond the rejection limit the pattern is suppressed outright.
func rejectionPenalty(rejections, limit int) float64 {
	if limit > 0 && rejections >= limit {
		return 0
	}
	if rejections < 0 {
		rejections = 0
	}
	if rejections >= len(rejectionPenalties) {
		return rejectionPenalties[len(rejectionPenalties)-1]
	}
	return rejectionPenalties[rejections]
}

// patternSuppressed reports whether a base pattern has been rejected often
// enough to be excluded from suggestions until feedback history is cleared.
func patternSuppressed(rejections, limit int) bool {
	return limit > 0 && rejections >= limit
}
