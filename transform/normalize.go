package transform

import "strings"

// punctuationReplacer maps typographic quotes to their ASCII forms.
var punctuationReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
)

// CleanText lower-cases text, trims surrounding whitespace and replaces
// curly quotes with ASCII quotes.
func CleanText(text string) string {
	return punctuationReplacer.Replace(strings.TrimSpace(strings.ToLower(text)))
}
