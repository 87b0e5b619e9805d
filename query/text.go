package query

import "strings"

// Stop words ignored when matching search terms against entity spans
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "in": true,
	"to": true, "for": true, "with": true, "on": true, "at": true, "by": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}
	return filtered
}

// longestWord returns the most selective word to send to the store.
func longestWord(words []string) string {
	best := ""
	for _, w := range words {
		if len(w) > len(best) {
			best = w
		}
	}
	return best
}

// spanMatches reports whether every query word occurs in span.
func spanMatches(span string, queryWords []string) bool {
	lower := strings.ToLower(span)
	for _, w := range queryWords {
		if !strings.Contains(lower, w) {
			return false
		}
	}
	return true
}
