package textutil

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// normalized forms, counted in runes. Empty input scores 0.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	return 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(longest)
}

// EditScore rates candidate against query as 1 - levenshtein / len(query),
// floored at 0. The denominator depends only on the query, so for a fixed
// query a larger edit distance never yields a higher score.
func EditScore(query, candidate string) float64 {
	nq, nc := Normalize(query), Normalize(candidate)
	if nq == "" || nc == "" {
		return 0
	}
	return max(0, 1-float64(levenshtein.ComputeDistance(nq, nc))/float64(utf8.RuneCountInString(nq)))
}

// BrewerySimilarity compares brewery names ignoring generic suffixes and word
// order, returning the better of the edit-distance and token scores.
func BrewerySimilarity(a, b string) float64 {
	sa, sb := StripBrewerySuffix(a), StripBrewerySuffix(b)
	if sa == "" || sb == "" {
		return 0
	}
	if sa == sb {
		return 1
	}
	return max(Similarity(sa, sb), TokenSimilarity(sa, sb))
}

// TokenSimilarity is the cosine similarity of the token vectors of a and b.
func TokenSimilarity(a, b string) float64 {
	return CosineSimilarity(NewTokenVector(a), NewTokenVector(b))
}

// CosineSimilarity computes the cosine similarity between two token vectors.
// Returns 0 if either vector is nil or has zero norm.
func CosineSimilarity(a, b *TokenVector) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return min(dot/(a.norm*b.norm), 1)
}
