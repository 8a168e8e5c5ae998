package memory

import (
	"strings"
	"unicode"
)

// stopwords are filler terms excluded from noun extraction and similarity
// scoring. Matching is done on lowercased tokens.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "day": {}, "get": {}, "has": {}, "him": {},
	"his": {}, "how": {}, "now": {}, "see": {}, "two": {}, "way": {},
	"who": {}, "did": {}, "its": {}, "let": {}, "say": {}, "she": {},
	"too": {}, "use": {}, "that": {}, "with": {}, "have": {}, "this": {},
	"will": {}, "your": {}, "from": {}, "they": {}, "know": {}, "want": {},
	"been": {}, "good": {}, "much": {}, "some": {}, "time": {}, "very": {},
	"when": {}, "come": {}, "here": {}, "just": {}, "like": {}, "long": {},
	"make": {}, "many": {}, "over": {}, "such": {}, "take": {}, "than": {},
	"them": {}, "well": {}, "were": {}, "what": {}, "about": {}, "could": {},
	"there": {}, "their": {}, "would": {}, "these": {}, "other": {},
	"which": {}, "should": {}, "really": {},
}

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// meaningfulWords returns the lowercased tokens longer than two characters
// that are not stopwords. Used by similarity scoring on both query and
// memory content.
func meaningfulWords(s string) []string {
	words := make([]string, 0, 8)
	for _, w := range splitWords(s) {
		if len(w) <= 2 || isStopword(w) {
			continue
		}
		words = append(words, w)
	}
	return words
}

// queryNouns extracts the deduplicated alphabetic tokens longer than three
// characters that are not stopwords. These widen store lookups; numeric
// tokens are skipped.
func queryNouns(s string) []string {
	nouns := make([]string, 0, 8)
	seen := map[string]struct{}{}
	for _, w := range splitWords(s) {
		if len(w) <= 3 || isStopword(w) || !alphabetic(w) {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		nouns = append(nouns, w)
	}
	return nouns
}

func alphabetic(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
