package catalog

import (
	"context"
	"errors"

	"strinks/internal/services"
)

// Candidate is one beer returned by a catalog backend.
type Candidate struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Brewery  string   `json:"brewery"`
	Style    string   `json:"style,omitempty"`
	ABV      float64  `json:"abv,omitempty"`
	IBU      float64  `json:"ibu,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	// Score is the backend's relevance in [0,1]; first result scores highest.
	Score   float64 `json:"score"`
	Backend string  `json:"backend"`
}

// HasRating reports whether the candidate carries a rating.
func (c Candidate) HasRating() bool {
	return c.Rating != nil
}

// Searcher looks up beers by free-text query.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// InfoProvider fetches a single beer by catalog id.
type InfoProvider interface {
	BeerInfo(ctx context.Context, id string) (Candidate, error)
}

// ErrorKind is the coarse classification of a backend failure.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindAuth      ErrorKind = "auth"
	KindQuota     ErrorKind = "quota"
	KindNotFound  ErrorKind = "not_found"
	KindTransient ErrorKind = "transient"
	KindCanceled  ErrorKind = "canceled"
	KindOther     ErrorKind = "other"
)

// Classify maps a backend error to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, services.ErrAuth):
		return KindAuth
	case errors.Is(err, services.ErrQuota):
		return KindQuota
	case errors.Is(err, services.ErrNotFound):
		return KindNotFound
	case errors.Is(err, services.ErrTransient):
		return KindTransient
	default:
		return KindOther
	}
}

// PositionalScore returns the relevance score of the result at index i of n:
// 1.0 for the first, descending linearly.
func PositionalScore(i, n int) float64 {
	if n <= 1 || i <= 0 {
		return 1
	}
	if i >= n {
		return 0
	}
	return 1 - float64(i)/float64(n)
}
