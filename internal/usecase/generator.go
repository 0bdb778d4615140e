package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// matchedPair is one successful pairwise comparison between two candidate
// products, kept for deterministic, best-first union ordering.
type matchedPair struct {
	a, b  string // product IDs, a < b
	match baseMatch
}

// collectPairs runs the pairwise matcher over all candidate keys. The keys
// slice must already be sorted by product ID. The quadratic sweep is the
// expensive part of a pass, so the analysis-time budget is checked on every
// outer iteration; when it expires the pairs gathered so far are returned
// with incomplete set, so a timed-out pass can still surface its strongest
// evidence.
func collectPairs(ctx context.Context, keys []domain.NormalizedKey, sensitivity float64, deadline time.Time) ([]matchedPair, bool, error) {
	var pairs []matchedPair
	for i := range keys {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return pairs, true, nil
		}
		for j := i + 1; j < len(keys); j++ {
			m, ok := commonBase(keys[i], keys[j], sensitivity)
			if !ok {
				continue
			}
			pairs = append(pairs, matchedPair{
				a:     keys[i].ProductID,
				b:     keys[j].ProductID,
				match: m,
			})
		}
	}
	return pairs, false, nil
}

// orderPairs sorts matches best-first (longer base, then closer residuals)
// with product IDs as the final tie-break, giving unions a total order.
func orderPairs(pairs []matchedPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if betterMatch(pairs[i].match, pairs[j].match) {
			return true
		}
		if betterMatch(pairs[j].match, pairs[i].match) {
			return false
		}
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
}

// clusterPairs merges matched pairs transitively: if A matches B and B
// matches C, all three land in one cluster even when A and C alone would
// fall below the threshold. Returns sorted member lists keyed by root.
func clusterPairs(ids []string, pairs []matchedPair) map[string][]string {
	uf := newUnionFind(ids)
	for _, p := range pairs {
		uf.union(p.a, p.b)
	}
	return uf.clusters()
}

// clusterBase computes the token prefix common to every member of a
// cluster. Matched pairs always agree on their first token, so a cluster's
// base is never empty.
func clusterBase(memberIDs []string, keys map[string]domain.NormalizedKey) []string {
	if len(memberIDs) == 0 {
		return nil
	}
	base := keys[memberIDs[0]].Tokens()
	for _, id := range memberIDs[1:] {
		base = commonTokenPrefix(base, keys[id].Tokens())
		if len(base) == 0 {
			break
		}
	}
	return base
}

// describeDifferences renders the human-readable difference list for a
// cluster: each variant attribute that actually varies across members,
// with its distinct values sorted, e.g. "color: blue/red" or "size: m/s".
func describeDifferences(memberIDs []string, keys map[string]domain.NormalizedKey, baseLen int) []string {
	byAttribute := make(map[string]map[string]bool)
	for _, id := range memberIDs {
		tokens := keys[id].Tokens()
		if len(tokens) <= baseLen {
			continue
		}
		for _, t := range tokens[baseLen:] {
			attr := variantAttribute(t)
			if byAttribute[attr] == nil {
				byAttribute[attr] = make(map[string]bool)
			}
			byAttribute[attr][t] = true
		}
	}

	attrs := make([]string, 0, len(byAttribute))
	for attr, values := range byAttribute {
		if len(values) >= 2 {
			attrs = append(attrs, attr)
		}
	}
	sort.Strings(attrs)

	out := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		values := make([]string, 0, len(byAttribute[attr]))
		for v := range byAttribute[attr] {
			values = append(values, v)
		}
		sort.Strings(values)
		out = append(out, attr+": "+strings.Join(values, "/"))
	}
	return out
}

// orderSuggestions sorts by descending confidence with ascending base key
// as the tie-break, then assigns the pass-scoped ordinal IDs.
func orderSuggestions(suggestions []domain.Suggestion) {
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].BaseKey < suggestions[j].BaseKey
	})
	for i := range suggestions {
		suggestions[i].ID = suggestionID(i)
	}
}

func suggestionID(ordinal int) string {
	return fmt.Sprintf("sg-%03d", ordinal+1)
}
