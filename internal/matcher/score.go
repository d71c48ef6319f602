package matcher

import (
	"cmp"
	"math"
	"slices"
	"strconv"

	"strinks/internal/catalog"
	"strinks/internal/config"
	"strinks/internal/textutil"
)

// TieBreak orders candidates whose composite scores are equal.
type TieBreak string

const (
	TieBreakBrewery TieBreak = "brewery"
	TieBreakRating  TieBreak = "rating"
	TieBreakID      TieBreak = "id"
)

// DefaultTieBreak prefers an exact brewery match, then a rated beer, then
// the lowest catalog id.
var DefaultTieBreak = []TieBreak{TieBreakBrewery, TieBreakRating, TieBreakID}

const scoreEpsilon = 1e-9

// Scoring holds the acceptance rules.
type Scoring struct {
	AcceptanceThreshold float64
	Margin              float64
	BreweryBonus        float64
	// SearchFloor stops variant generation once any candidate reaches it.
	SearchFloor float64
	TieBreak    []TieBreak
}

// ScoringFromConfig maps the [matching] section onto scoring rules.
func ScoringFromConfig(cfg *config.Config) Scoring {
	order := make([]TieBreak, 0, len(cfg.Matching.TieBreak))
	for _, key := range cfg.Matching.TieBreak {
		order = append(order, TieBreak(key))
	}
	return Scoring{
		AcceptanceThreshold: cfg.Matching.AcceptanceThreshold,
		Margin:              cfg.Matching.Margin,
		BreweryBonus:        cfg.Matching.BreweryBonus,
		SearchFloor:         cfg.Matching.SearchFloor,
		TieBreak:            order,
	}
}

// Scored is a candidate with its composite score.
type Scored struct {
	Candidate    catalog.Candidate
	Composite    float64
	NameScore    float64
	BreweryScore float64
	BreweryExact bool
	// Query is the variant that produced NameScore.
	Query string
}

// ScoreCandidate computes the composite score of cand: the best name score
// over variants plus BreweryBonus times the best brewery similarity.
// Brewery-qualified variants are compared against "brewery name".
func (s Scoring) ScoreCandidate(variants []Variant, breweries []string, cand catalog.Candidate) Scored {
	out := Scored{Candidate: cand}
	out.NameScore = -1
	for _, v := range variants {
		target := cand.Name
		if v.Qualified() {
			target = cand.Brewery + " " + cand.Name
		}
		if score := textutil.EditScore(v.Query, target); score > out.NameScore {
			out.NameScore = score
			out.Query = v.Query
		}
	}
	out.NameScore = max(out.NameScore, 0)

	candBrewery := textutil.StripBrewerySuffix(cand.Brewery)
	for _, brewery := range breweries {
		out.BreweryScore = max(out.BreweryScore, textutil.BrewerySimilarity(brewery, cand.Brewery))
		if candBrewery != "" && textutil.StripBrewerySuffix(brewery) == candBrewery {
			out.BreweryExact = true
		}
	}
	out.Composite = out.NameScore + s.BreweryBonus*out.BreweryScore
	return out
}

// Rank scores every candidate and sorts them best first.
func (s Scoring) Rank(variants []Variant, breweries []string, candidates []catalog.Candidate) []Scored {
	ranked := make([]Scored, 0, len(candidates))
	for _, cand := range candidates {
		ranked = append(ranked, s.ScoreCandidate(variants, breweries, cand))
	}
	order := s.TieBreak
	if len(order) == 0 {
		order = DefaultTieBreak
	}
	slices.SortStableFunc(ranked, func(a, b Scored) int {
		if math.Abs(a.Composite-b.Composite) > scoreEpsilon {
			return cmp.Compare(b.Composite, a.Composite)
		}
		for _, key := range order {
			if c := compareTieBreak(key, a, b); c != 0 {
				return c
			}
		}
		return compareIDs(a.Candidate.ID, b.Candidate.ID)
	})
	return ranked
}

// Decide reports whether the head of ranked is accepted and why.
func (s Scoring) Decide(ranked []Scored) (bool, string) {
	if len(ranked) == 0 {
		return false, "no candidates"
	}
	top := ranked[0].Composite
	if top+scoreEpsilon < s.AcceptanceThreshold {
		return false, "best score " + formatScore(top) + " below threshold " + formatScore(s.AcceptanceThreshold)
	}
	if len(ranked) > 1 {
		gap := top - ranked[1].Composite
		if gap+scoreEpsilon < s.Margin {
			return false, "best score " + formatScore(top) + " within margin of runner-up " + formatScore(ranked[1].Composite)
		}
	}
	return true, "best score " + formatScore(top) + " accepted"
}

func compareTieBreak(key TieBreak, a, b Scored) int {
	switch key {
	case TieBreakBrewery:
		return compareTrueFirst(a.BreweryExact, b.BreweryExact)
	case TieBreakRating:
		return compareTrueFirst(a.Candidate.HasRating(), b.Candidate.HasRating())
	case TieBreakID:
		return compareIDs(a.Candidate.ID, b.Candidate.ID)
	}
	return 0
}

func compareTrueFirst(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

// compareIDs orders numeric ids numerically and anything else lexically.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(na, nb)
	}
	return cmp.Compare(a, b)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// mergeCandidates folds found into merged by catalog id, keeping the
// highest backend score per id.
func mergeCandidates(merged map[string]catalog.Candidate, found []catalog.Candidate) {
	for _, cand := range found {
		if cand.ID == "" {
			continue
		}
		if prev, ok := merged[cand.ID]; ok && prev.Score >= cand.Score {
			continue
		}
		merged[cand.ID] = cand
	}
}

func candidateList(merged map[string]catalog.Candidate) []catalog.Candidate {
	out := make([]catalog.Candidate, 0, len(merged))
	for _, cand := range merged {
		out = append(out, cand)
	}
	// map order must not leak into the stable sort
	slices.SortFunc(out, func(a, b catalog.Candidate) int { return compareIDs(a.ID, b.ID) })
	return out
}
