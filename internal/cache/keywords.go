package cache

import "strings"

// stopWords are filtered out before fuzzy matching. English-only; mixed
// language queries fall through to the generator instead of fuzzy-hitting.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "do": true, "does": true, "did": true,
	"can": true, "could": true, "will": true, "would": true, "should": true,
	"i": true, "my": true, "me": true, "we": true, "you": true, "your": true,
	"it": true, "its": true, "this": true, "that": true, "there": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"how": true, "why": true, "of": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "and": true, "or": true, "with": true,
	"about": true, "please": true, "tell": true,
}

// ExtractKeywords returns the set of content keywords in query: normalized
// words with stop words removed.
func ExtractKeywords(query string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, word := range strings.Fields(normalize(query)) {
		word = strings.Trim(word, "?.!,;:'\"()")
		if word == "" || stopWords[word] {
			continue
		}
		keywords[word] = struct{}{}
	}
	return keywords
}

// overlapScore is the Jaccard coefficient between two keyword sets:
// |intersection| / |union|. Returns 0 when either set is empty.
func overlapScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for kw := range a {
		if _, ok := b[kw]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
