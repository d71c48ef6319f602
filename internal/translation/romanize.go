package translation

import (
	"strings"
	"sync"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"golang.org/x/text/unicode/norm"
)

const (
	sokuon     = 'っ'
	longVowel  = 'ー'
	kataStart  = 'ァ'
	kataEnd    = 'ヶ'
	kanaOffset = 'ァ' - 'ぁ'
)

var monographs = map[rune]string{
	'あ': "a", 'い': "i", 'う': "u", 'え': "e", 'お': "o",
	'か': "ka", 'き': "ki", 'く': "ku", 'け': "ke", 'こ': "ko",
	'さ': "sa", 'し': "shi", 'す': "su", 'せ': "se", 'そ': "so",
	'た': "ta", 'ち': "chi", 'つ': "tsu", 'て': "te", 'と': "to",
	'な': "na", 'に': "ni", 'ぬ': "nu", 'ね': "ne", 'の': "no",
	'は': "ha", 'ひ': "hi", 'ふ': "fu", 'へ': "he", 'ほ': "ho",
	'ま': "ma", 'み': "mi", 'む': "mu", 'め': "me", 'も': "mo",
	'や': "ya", 'ゆ': "yu", 'よ': "yo",
	'ら': "ra", 'り': "ri", 'る': "ru", 'れ': "re", 'ろ': "ro",
	'わ': "wa", 'ゐ': "i", 'ゑ': "e", 'を': "o", 'ん': "n",
	'が': "ga", 'ぎ': "gi", 'ぐ': "gu", 'げ': "ge", 'ご': "go",
	'ざ': "za", 'じ': "ji", 'ず': "zu", 'ぜ': "ze", 'ぞ': "zo",
	'だ': "da", 'ぢ': "ji", 'づ': "zu", 'で': "de", 'ど': "do",
	'ば': "ba", 'び': "bi", 'ぶ': "bu", 'べ': "be", 'ぼ': "bo",
	'ぱ': "pa", 'ぴ': "pi", 'ぷ': "pu", 'ぺ': "pe", 'ぽ': "po",
	'ゔ': "vu",
	'ぁ': "a", 'ぃ': "i", 'ぅ': "u", 'ぇ': "e", 'ぉ': "o",
	'ゃ': "ya", 'ゅ': "yu", 'ょ': "yo", 'ゎ': "wa", 'ゕ': "ka", 'ゖ': "ke",
}

var digraphs = map[string]string{
	"きゃ": "kya", "きゅ": "kyu", "きょ": "kyo",
	"しゃ": "sha", "しゅ": "shu", "しょ": "sho", "しぇ": "she",
	"ちゃ": "cha", "ちゅ": "chu", "ちょ": "cho", "ちぇ": "che",
	"にゃ": "nya", "にゅ": "nyu", "にょ": "nyo",
	"ひゃ": "hya", "ひゅ": "hyu", "ひょ": "hyo",
	"みゃ": "mya", "みゅ": "myu", "みょ": "myo",
	"りゃ": "rya", "りゅ": "ryu", "りょ": "ryo",
	"ぎゃ": "gya", "ぎゅ": "gyu", "ぎょ": "gyo",
	"じゃ": "ja", "じゅ": "ju", "じょ": "jo", "じぇ": "je",
	"ぢゃ": "ja", "ぢゅ": "ju", "ぢょ": "jo",
	"びゃ": "bya", "びゅ": "byu", "びょ": "byo",
	"ぴゃ": "pya", "ぴゅ": "pyu", "ぴょ": "pyo",
	"ふぁ": "fa", "ふぃ": "fi", "ふぇ": "fe", "ふぉ": "fo", "ふゅ": "fyu",
	"てぃ": "ti", "でぃ": "di", "でゅ": "dyu", "とぅ": "tu", "どぅ": "du",
	"うぃ": "wi", "うぇ": "we", "うぉ": "wo", "いぇ": "ye",
	"つぁ": "tsa", "つぃ": "tsi", "つぇ": "tse", "つぉ": "tso",
	"ゔぁ": "va", "ゔぃ": "vi", "ゔぇ": "ve", "ゔぉ": "vo",
}

// kanjiReader loads the IPA dictionary on first use; it is large and most
// inputs never need it.
var kanjiReader = sync.OnceValues(func() (*tokenizer.Tokenizer, error) {
	return tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
})

// Romanize transliterates Japanese text to Hepburn romaji. Kanji words are
// replaced by their dictionary reading and set off by spaces; hiragana and
// katakana are converted in place. Other runes pass through unchanged.
// Halfwidth katakana is widened first.
func Romanize(text string) string {
	if text == "" {
		return ""
	}
	// NFKC widens halfwidth katakana and joins its detached sound marks.
	widened := readKanji(norm.NFKC.String(text))
	runes := []rune(widened)
	for i, r := range runes {
		runes[i] = toHiragana(r)
	}

	var b strings.Builder
	b.Grow(len(widened))
	doubleNext := false
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == sokuon:
			doubleNext = true
			i++
			continue
		case r == longVowel:
			if last := lastVowel(b.String()); last != 0 {
				b.WriteByte(last)
			} else {
				b.WriteRune(r)
			}
			doubleNext = false
			i++
			continue
		}

		syllable, n := lookupSyllable(runes, i)
		if syllable == "" {
			doubleNext = false
			b.WriteRune(r)
			i++
			continue
		}
		if doubleNext {
			b.WriteString(geminate(syllable))
			doubleNext = false
		}
		b.WriteString(syllable)
		i += n
	}
	return b.String()
}

// HasJapanese reports whether text contains any rune above U+3000.
func HasJapanese(text string) bool {
	for _, r := range text {
		if r > 0x3000 {
			return true
		}
	}
	return false
}

func isKanji(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// readKanji swaps every word containing kanji for its katakana reading.
// Words the dictionary has no reading for are kept as written.
func readKanji(text string) string {
	if !strings.ContainsFunc(text, isKanji) {
		return text
	}
	t, err := kanjiReader()
	if err != nil {
		return text
	}
	fields := strings.Fields(text)
	for i, field := range fields {
		if strings.ContainsFunc(field, isKanji) {
			fields[i] = readField(t, field)
		}
	}
	return strings.Join(fields, " ")
}

func readField(t *tokenizer.Tokenizer, field string) string {
	var b strings.Builder
	spaceNext := false
	for _, tok := range t.Tokenize(field) {
		reading, ok := tok.Reading()
		if !strings.ContainsFunc(tok.Surface, isKanji) || !ok || reading == "" || reading == "*" {
			if spaceNext {
				b.WriteByte(' ')
				spaceNext = false
			}
			b.WriteString(tok.Surface)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(reading)
		spaceNext = true
	}
	return b.String()
}

func toHiragana(r rune) rune {
	if r >= kataStart && r <= kataEnd {
		return r - kanaOffset
	}
	return r
}

func lookupSyllable(runes []rune, i int) (string, int) {
	if i+1 < len(runes) {
		if s, ok := digraphs[string(runes[i:i+2])]; ok {
			return s, 2
		}
	}
	if s, ok := monographs[runes[i]]; ok {
		return s, 1
	}
	return "", 0
}

// geminate returns the consonant doubled by a preceding sokuon.
func geminate(syllable string) string {
	if strings.HasPrefix(syllable, "ch") {
		return "t"
	}
	switch syllable[0] {
	case 'a', 'i', 'u', 'e', 'o', 'n':
		return ""
	}
	return syllable[:1]
}

func lastVowel(s string) byte {
	if s == "" {
		return 0
	}
	switch c := s[len(s)-1]; c {
	case 'a', 'i', 'u', 'e', 'o':
		return c
	}
	return 0
}
