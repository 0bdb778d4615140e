package usecase

import (
	"strings"
	"unicode"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// colorTokens are variant markers that describe a color option.
var colorTokens = map[string]bool{
	"black": true, "white": true, "red": true, "blue": true, "green": true,
	"yellow": true, "orange": true, "purple": true, "pink": true, "brown": true,
	"grey": true, "gray": true, "navy": true, "beige": true, "cream": true,
	"gold": true, "silver": true, "khaki": true, "burgundy": true, "turquoise": true,
	// Turkish marketplace exports carry local color names, with and without
	// diacritics depending on the platform
	"siyah": true, "beyaz": true, "kirmizi": true, "kırmızı": true,
	"mavi": true, "yesil": true, "yeşil": true, "sari": true, "sarı": true,
	"turuncu": true, "mor": true, "pembe": true, "kahverengi": true,
	"gri": true, "lacivert": true, "bej": true, "krem": true, "bordo": true,
	"turkuaz": true,
}

// sizeTokens are variant markers that describe a garment or package size.
var sizeTokens = map[string]bool{
	"xxs": true, "xs": true, "s": true, "m": true, "l": true, "xl": true,
	"xxl": true, "xxxl": true, "2xl": true, "3xl": true, "4xl": true, "5xl": true,
	"small": true, "medium": true, "large": true, "xlarge": true,
	"x-large": true, "xsmall": true, "x-small": true,
}

// tokenize lower-cases the input and splits it into alternating
// alphabetic/numeric runs, treating every non-alphanumeric rune
// (separators like "-", "_", "/", whitespace, stray punctuation) as a hard
// token boundary, so "ABC-123-RED" and "abc123red" both yield
// ["abc", "123", "red"]. Single-character and purely numeric tokens are
// kept: size markers like "s" and model numbers like "128" are exactly
// what distinguishes variants.
func tokenize(s string) []string {
	s = strings.ToLower(s)

	var tokens []string
	var run []rune
	var runDigit bool

	flush := func() {
		if len(run) > 0 {
			tokens = append(tokens, string(run))
			run = run[:0]
		}
	}

	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			if len(run) > 0 && !runDigit {
				flush()
			}
			runDigit = true
			run = append(run, r)
		case unicode.IsLetter(r):
			if len(run) > 0 && runDigit {
				flush()
			}
			runDigit = false
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// normalizeKey derives the per-pass normalized key for a product. The SKU is
// the primary source; a degenerate SKU (empty or separators only) falls back
// to the title. If both are degenerate the key stays empty, and empty keys
// never match anything.
//
// Trailing tokens that look like variant markers (colors, sizes, bare
// numbers) are classified as variant tokens; the first token is always kept
// as base so a key can never consist of variant tokens alone.
func normalizeKey(p domain.Product) domain.NormalizedKey {
	tokens := tokenize(p.SKU)
	if len(tokens) == 0 {
		tokens = tokenize(p.Title)
	}

	split := len(tokens)
	for split > 1 && isVariantMarker(tokens[split-1]) {
		split--
	}

	key := domain.NormalizedKey{ProductID: p.ID}
	if len(tokens) == 0 {
		return key
	}
	key.BaseTokens = tokens[:split]
	key.VariantTokens = tokens[split:]
	return key
}

// isVariantMarker reports whether a token typically distinguishes variants
// of one base item rather than identifying the item itself.
func isVariantMarker(token string) bool {
	return colorTokens[token] || sizeTokens[token] || isNumeric(token)
}

// variantAttribute names the attribute a variant token most likely encodes.
// Used to render human-readable difference lists.
func variantAttribute(token string) string {
	switch {
	case colorTokens[token]:
		return "color"
	case sizeTokens[token]:
		return "size"
	case isNumeric(token):
		return "model"
	default:
		return "style"
	}
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
