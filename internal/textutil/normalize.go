package textutil

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// chainPool holds transformer chains; a chain is stateful and must not be
// shared between goroutines.
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Normalize returns the canonical comparison form of s.
func Normalize(s string) string {
	s = strings.ToValidUTF8(s, "")
	if strings.TrimSpace(s) == "" {
		return ""
	}
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = strings.ToLower(s)
	}
	return CollapseSpace(out)
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// keyEscaper escapes the separator so a "|" inside a field cannot shift the
// name/brewery boundary.
var keyEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// RecordKey builds the cache fingerprint for a record. The key stays human
// readable: "normalized name|normalized brewery", with "\" and "|" inside
// either field backslash-escaped.
func RecordKey(name, brewery string) string {
	return keyEscaper.Replace(Normalize(name)) + "|" + keyEscaper.Replace(Normalize(brewery))
}

// brewerySuffixes are trailing words that do not distinguish breweries.
var brewerySuffixes = []string{
	"brewing company", "brewing co", "brewing", "brewery", "brewers",
	"beer company", "beer co", "beer", "company", "co",
	"醸造所", "ブルワリー", "ブリュワリー", "ブルーイング", "ビール", "麦酒",
}

// StripBrewerySuffix normalizes a brewery name and drops one generic suffix
// such as "Brewing Co" or "醸造所". The bare suffix is returned unchanged.
func StripBrewerySuffix(brewery string) string {
	n := strings.TrimRight(Normalize(brewery), ".")
	for _, suffix := range brewerySuffixes {
		if n == suffix || !strings.HasSuffix(n, suffix) {
			continue
		}
		rest := strings.TrimSuffix(n, suffix)
		// latin suffixes must be whole words; "taco" keeps its "co"
		if suffix[0] < utf8.RuneSelf && !strings.HasSuffix(rest, " ") {
			continue
		}
		if trimmed := CollapseSpace(rest); trimmed != "" {
			return trimmed
		}
	}
	return n
}
