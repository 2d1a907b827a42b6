package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Spanish articles, prepositions and conjunctions ignored when comparing
// headlines for similarity.
var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {}, "unas": {},
	"de": {}, "del": {}, "en": {}, "por": {}, "para": {}, "con": {}, "y": {}, "o": {},
	"que": {}, "a": {}, "ante": {}, "bajo": {}, "cabe": {}, "como": {}, "contra": {},
	"desde": {}, "durante": {}, "entre": {}, "hacia": {}, "hasta": {}, "mediante": {},
	"segun": {}, "sin": {}, "so": {}, "sobre": {}, "tras": {}, "versus": {}, "via": {},
}

func fold(s string) string {
	out, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		return s
	}
	return out
}

// Title returns the comparison form of a headline: lowercased, diacritics
// folded, runs of non-alphanumeric characters collapsed to single spaces.
// Two cached articles are considered the same article when their Title forms
// are equal.
func Title(s string) string {
	s = fold(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ForDedup is the Title form with stopwords removed. Used for the looser
// same-day similarity check on served headlines.
func ForDedup(s string) string {
	words := strings.Fields(Title(s))
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// SignificantWords returns the dedup-form words longer than three characters.
func SignificantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(ForDedup(s)) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}
