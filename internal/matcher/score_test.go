package matcher_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"strinks/internal/catalog"
	"strinks/internal/matcher"
)

func defaultScoring() matcher.Scoring {
	return matcher.Scoring{
		AcceptanceThreshold: 0.8,
		Margin:              0.05,
		BreweryBonus:        0.2,
		SearchFloor:         0.5,
		TieBreak:            matcher.DefaultTieBreak,
	}
}

func plain(query string) []matcher.Variant {
	return []matcher.Variant{{Kind: matcher.VariantOriginal, Query: query}}
}

func ratingOf(v float64) *float64 { return &v }

func TestScoreCandidateComposite(t *testing.T) {
	s := defaultScoring()
	got := s.ScoreCandidate(plain("Gose"), []string{"Example Brewery"},
		catalog.Candidate{ID: "1", Name: "Gose", Brewery: "Example Brewing Co."})

	if math.Abs(got.NameScore-1) > 1e-9 {
		t.Fatalf("NameScore = %v, want 1", got.NameScore)
	}
	if !got.BreweryExact || math.Abs(got.BreweryScore-1) > 1e-9 {
		t.Fatalf("expected exact brewery match, got %+v", got)
	}
	if math.Abs(got.Composite-1.2) > 1e-9 {
		t.Fatalf("Composite = %v, want 1.2", got.Composite)
	}
	if got.Query != "Gose" {
		t.Fatalf("Query = %q, want Gose", got.Query)
	}
}

func TestScoreCandidateQualifiedVariant(t *testing.T) {
	s := defaultScoring()
	variants := []matcher.Variant{
		{Kind: matcher.VariantOriginal, Query: "ペールエール"},
		{Kind: matcher.VariantQualified, Query: "Yorocco Pale Ale"},
	}
	got := s.ScoreCandidate(variants, nil, catalog.Candidate{ID: "7", Name: "Pale Ale", Brewery: "Yorocco"})
	if math.Abs(got.NameScore-1) > 1e-9 || got.Query != "Yorocco Pale Ale" {
		t.Fatalf("expected the qualified variant to match brewery+name, got %+v", got)
	}
	if got.BreweryScore != 0 {
		t.Fatalf("expected no brewery score without brewery forms, got %v", got.BreweryScore)
	}
}

func TestScoreMonotoneInEditDistance(t *testing.T) {
	s := defaultScoring()
	names := []string{
		"Hitachino Nest White Ale",
		"Hitachino Nest White Al",
		"Hitachino Nest Whte Al",
		"Hitachno Nest Whte Al",
		"Hitachno Nst Whte Al",
		"Hitachno Nst Wht Al",
		"Htachno Nst Wht Al",
	}
	prev := math.Inf(1)
	for _, name := range names {
		got := s.ScoreCandidate(plain("Hitachino Nest White Ale"), []string{"Kiuchi Brewery"},
			catalog.Candidate{ID: "1", Name: name, Brewery: "Kiuchi Brewery"})
		if got.Composite > prev+1e-12 {
			t.Fatalf("composite for %q rose to %v from %v", name, got.Composite, prev)
		}
		prev = got.Composite
	}
}

func TestRankTieBreakDefaultOrder(t *testing.T) {
	s := defaultScoring()
	s.BreweryBonus = 0
	candidates := []catalog.Candidate{
		{ID: "30", Name: "Pale Ale", Brewery: "Other"},
		{ID: "20", Name: "Pale Ale", Brewery: "Other", Rating: ratingOf(3.5)},
		{ID: "100", Name: "Pale Ale", Brewery: "Minoh"},
		{ID: "9", Name: "Pale Ale", Brewery: "Other", Rating: ratingOf(3.9)},
	}
	ranked := s.Rank(plain("Pale Ale"), []string{"Minoh Beer"}, candidates)

	got := make([]string, len(ranked))
	for i, r := range ranked {
		got[i] = r.Candidate.ID
	}
	want := []string{"100", "9", "20", "30"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order = %v, want %v", got, want)
		}
	}

	accepted, reason := s.Decide(ranked)
	if accepted {
		t.Fatalf("expected tied scores to fail the margin, got accepted (%s)", reason)
	}

	s.Margin = 0
	accepted, _ = s.Decide(ranked)
	if !accepted {
		t.Fatal("expected the tie-break winner to be accepted with zero margin")
	}
}

func TestRankTieBreakConfigurable(t *testing.T) {
	s := defaultScoring()
	s.BreweryBonus = 0
	s.TieBreak = []matcher.TieBreak{matcher.TieBreakID}
	candidates := []catalog.Candidate{
		{ID: "100", Name: "Stout", Brewery: "Minoh", Rating: ratingOf(4)},
		{ID: "25", Name: "Stout", Brewery: "Other"},
	}
	ranked := s.Rank(plain("Stout"), []string{"Minoh"}, candidates)
	if ranked[0].Candidate.ID != "25" {
		t.Fatalf("expected lowest id first, got %s", ranked[0].Candidate.ID)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	s := defaultScoring()
	candidates := []catalog.Candidate{
		{ID: "1", Name: "Punk IPA", Brewery: "BrewDog", Rating: ratingOf(3.7)},
		{ID: "2", Name: "Punk IPA 2", Brewery: "BrewDog"},
		{ID: "3", Name: "Punk AF", Brewery: "BrewDog"},
		{ID: "4", Name: "Punk IPA", Brewery: "Other"},
		{ID: "5", Name: "Hazy Jane", Brewery: "BrewDog"},
	}
	first := s.Rank(plain("Punk IPA"), []string{"BrewDog"}, candidates)
	firstAccepted, _ := s.Decide(first)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := append([]catalog.Candidate(nil), candidates...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		ranked := s.Rank(plain("Punk IPA"), []string{"BrewDog"}, shuffled)
		accepted, _ := s.Decide(ranked)
		if accepted != firstAccepted || ranked[0].Candidate.ID != first[0].Candidate.ID {
			t.Fatalf("decision changed with input order: %v/%s vs %v/%s",
				accepted, ranked[0].Candidate.ID, firstAccepted, first[0].Candidate.ID)
		}
	}
	if !firstAccepted || first[0].Candidate.ID != "1" {
		t.Fatalf("expected candidate 1 accepted, got %v/%s", firstAccepted, first[0].Candidate.ID)
	}
}

func TestDecide(t *testing.T) {
	s := defaultScoring()
	tests := []struct {
		name   string
		scores []float64
		want   bool
	}{
		{"empty", nil, false},
		{"single above threshold", []float64{0.85}, true},
		{"single below threshold", []float64{0.79}, false},
		{"clear winner", []float64{1.2, 0.9}, true},
		{"within margin", []float64{1.0, 0.98}, false},
		{"exactly at margin", []float64{1.0, 0.95}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked := make([]matcher.Scored, len(tt.scores))
			for i, score := range tt.scores {
				ranked[i] = matcher.Scored{Composite: score}
			}
			if got, reason := s.Decide(ranked); got != tt.want {
				t.Fatalf("Decide = %v (%s), want %v", got, reason, tt.want)
			}
		})
	}
}
