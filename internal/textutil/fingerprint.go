package textutil

import (
	"math"
	"strings"
	"unicode"
)

// TokenVector is a term-frequency vector used for order-insensitive
// comparison of names.
type TokenVector struct {
	tokens map[string]float64
	norm   float64
}

// NewTokenVector creates a vector from the provided text.
// Returns nil if the text produces no valid tokens.
func NewTokenVector(text string) *TokenVector {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &TokenVector{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize normalizes text and splits it on anything that is not a letter or
// digit, dropping single-rune tokens.
func Tokenize(text string) []string {
	raw := strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < 2 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of unique tokens in the vector.
func (v *TokenVector) TokenCount() int {
	if v == nil {
		return 0
	}
	return len(v.tokens)
}
