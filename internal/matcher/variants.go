package matcher

import (
	"context"
	"strings"

	"strinks/internal/textutil"
	"strinks/internal/translation"
)

// VariantKind labels where a query variant came from.
type VariantKind string

const (
	VariantOriginal   VariantKind = "original"
	VariantTranslated VariantKind = "translated"
	VariantRomanized  VariantKind = "romanized"
	VariantQualified  VariantKind = "brewery_qualified"
	VariantTrimmed    VariantKind = "brewery_qualified_trimmed"
)

// maxTrimmedVariants bounds how many trailing words are dropped from the
// brewery-qualified query.
const maxTrimmedVariants = 2

// Variant is one catalog query derived from a record.
type Variant struct {
	Kind  VariantKind
	Query string
}

// Qualified reports whether the query carries the brewery name and so must
// be compared against "brewery name" of each candidate.
func (v Variant) Qualified() bool {
	return v.Kind == VariantQualified || v.Kind == VariantTrimmed
}

// identity is used when no translator is configured.
type identity struct{}

func (identity) Translate(_ context.Context, text, _, _ string) string { return text }
func (identity) Romanize(text string) string                           { return text }

// variantSource yields the query variants of one record in priority order.
// Translation happens only when a variant that needs it is requested, and
// variants that normalize to an already produced query are skipped.
type variantSource struct {
	ctx context.Context
	tr  Translator
	rec Record

	stage   int
	pending []Variant
	seen    map[string]struct{}
	tried   []Variant

	translatedDone bool
	translated     string
	romanized      string
	brewery        string
}

var variantStages = []func(*variantSource) []Variant{
	(*variantSource).originalStage,
	(*variantSource).translatedStage,
	(*variantSource).romanizedStage,
	(*variantSource).qualifiedStage,
	(*variantSource).trimmedStage,
}

func newVariantSource(ctx context.Context, tr Translator, rec Record) *variantSource {
	if tr == nil {
		tr = identity{}
	}
	return &variantSource{
		ctx:  ctx,
		tr:   tr,
		rec:  rec,
		seen: make(map[string]struct{}),
	}
}

// Next returns the next unseen variant.
func (s *variantSource) Next() (Variant, bool) {
	for {
		if len(s.pending) > 0 {
			v := s.pending[0]
			s.pending = s.pending[1:]
			key := textutil.Normalize(v.Query)
			if key == "" {
				continue
			}
			if _, dup := s.seen[key]; dup {
				continue
			}
			s.seen[key] = struct{}{}
			v.Query = textutil.CollapseSpace(v.Query)
			s.tried = append(s.tried, v)
			return v, true
		}
		if s.stage >= len(variantStages) {
			return Variant{}, false
		}
		s.pending = variantStages[s.stage](s)
		s.stage++
	}
}

// Tried returns the variants produced so far.
func (s *variantSource) Tried() []Variant {
	return s.tried
}

// BreweryForms returns the record brewery and, once translated, its English form.
func (s *variantSource) BreweryForms() []string {
	forms := make([]string, 0, 2)
	if s.rec.Brewery != "" {
		forms = append(forms, s.rec.Brewery)
	}
	if s.brewery != "" && textutil.Normalize(s.brewery) != textutil.Normalize(s.rec.Brewery) {
		forms = append(forms, s.brewery)
	}
	return forms
}

func (s *variantSource) originalStage() []Variant {
	return []Variant{{Kind: VariantOriginal, Query: s.rec.Name}}
}

func (s *variantSource) translatedStage() []Variant {
	s.translate()
	return []Variant{{Kind: VariantTranslated, Query: s.translated}}
}

func (s *variantSource) romanizedStage() []Variant {
	s.translate()
	return []Variant{{Kind: VariantRomanized, Query: s.romanized}}
}

func (s *variantSource) qualifiedStage() []Variant {
	s.translate()
	if s.brewery == "" {
		return nil
	}
	return []Variant{{Kind: VariantQualified, Query: s.brewery + " " + s.englishName()}}
}

// trimmedStage drops trailing words from the English name, which often
// carries volume or packaging noise ("Pale Ale 350ml 缶").
func (s *variantSource) trimmedStage() []Variant {
	if s.brewery == "" {
		return nil
	}
	words := strings.Fields(s.englishName())
	breweryKey := textutil.Normalize(s.brewery)
	out := make([]Variant, 0, maxTrimmedVariants)
	for drop := 1; drop <= maxTrimmedVariants && drop < len(words); drop++ {
		name := strings.Join(words[:len(words)-drop], " ")
		if textutil.Normalize(name) == breweryKey {
			break
		}
		out = append(out, Variant{Kind: VariantTrimmed, Query: s.brewery + " " + name})
	}
	return out
}

func (s *variantSource) translate() {
	if s.translatedDone {
		return
	}
	s.translatedDone = true
	source := s.rec.sourceName()
	s.translated = s.tr.Translate(s.ctx, source, "ja", "en")
	s.romanized = s.tr.Romanize(source)
	if s.rec.Brewery != "" {
		s.brewery = s.tr.Translate(s.ctx, s.rec.Brewery, "ja", "en")
	}
}

// englishName picks the first of the translated, original and romanized
// names that contains no Japanese text.
func (s *variantSource) englishName() string {
	for _, name := range []string{s.translated, s.rec.Name, s.romanized} {
		if name != "" && !translation.HasJapanese(name) {
			return name
		}
	}
	return s.romanized
}
