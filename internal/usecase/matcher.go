package usecase

import (
	"math"
	"strings"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// minSharedTokenFloor is the absolute minimum number of shared tokens two
// keys must have before they can be considered variants of one base item.
const minSharedTokenFloor = 2

// baseMatch is the outcome of a successful pairwise comparison: the longest
// common token prefix and the residual variant tokens on each side.
type baseMatch struct {
	baseTokens []string
	variantA   []string
	variantB   []string
	shared     int
}

// baseKey renders the canonical string form of the match's base pattern.
func (m baseMatch) baseKey() string {
	return strings.Join(m.baseTokens, "-")
}

// commonBase compares two normalized keys and reports whether they look like
// variants of the same base item at the given sensitivity.
//
// The match requires enough shared tokens (at least minSharedTokenFloor, or
// sensitivity times the shorter key's token count, whichever is stricter)
// plus a non-empty common token prefix; the prefix becomes the base pattern
// and the per-key remainders become variant tokens. Token-level prefixes
// keep unrelated SKUs that merely share characters apart.
//
// Sensitivity is a pure parameter: the same inputs always produce the same
// answer.
func commonBase(a, b domain.NormalizedKey, sensitivity float64) (baseMatch, bool) {
	if a.Empty() || b.Empty() {
		return baseMatch{}, false
	}

	ta := a.Tokens()
	tb := b.Tokens()

	shorter := len(ta)
	if len(tb) < shorter {
		shorter = len(tb)
	}

	shared, _ := findIntersection(ta, tb)
	if shared < minSharedTokens(sensitivity, shorter) {
		return baseMatch{}, false
	}

	prefix := commonTokenPrefix(ta, tb)
	if len(prefix) == 0 {
		return baseMatch{}, false
	}

	return baseMatch{
		baseTokens: prefix,
		variantA:   ta[len(prefix):],
		variantB:   tb[len(prefix):],
		shared:     shared,
	}, true
}

// minSharedTokens returns the shared-token requirement for a pair whose
// shorter key has the given token count. Both thresholds apply; the
// stricter one wins.
func minSharedTokens(sensitivity float64, shorterLen int) int {
	need := int(math.Ceil(sensitivity * float64(shorterLen)))
	if need < minSharedTokenFloor {
		need = minSharedTokenFloor
	}
	return need
}

// commonTokenPrefix returns the longest run of identical leading tokens.
func commonTokenPrefix(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// betterMatch reports whether m should be preferred over other when ranking
// candidate matches: longer common bases win; equal bases prefer the pair
// whose residual variant tokens are closer in edit distance; remaining ties
// fall back to the lexically smaller base key so ordering stays total.
func betterMatch(m, other baseMatch) bool {
	if len(m.baseTokens) != len(other.baseTokens) {
		return len(m.baseTokens) > len(other.baseTokens)
	}
	dm := residualEditDistance(m)
	do := residualEditDistance(other)
	if dm != do {
		return dm < do
	}
	return m.baseKey() < other.baseKey()
}

// residualEditDistance measures how far apart the two residual variant-token
// sequences of a match are.
func residualEditDistance(m baseMatch) int {
	return levenshteinDistance(strings.Join(m.variantA, " "), strings.Join(m.variantB, " "))
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of the full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// findIntersection returns the count of common tokens and the list of matched tokens
func findIntersection(tokens1, tokens2 []string) (int, []string) {
	set := make(map[string]bool)
	for _, t := range tokens1 {
		set[t] = true
	}

	var matched []string
	seen := make(map[string]bool)
	for _, t := range tokens2 {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}

	return len(matched), matched
}
