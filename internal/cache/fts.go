package cache

import "strings"

// sanitizeFTSQuery turns raw user input into a query FTS5 will accept.
// Tokens are split on whitespace and every token is wrapped in double quotes,
// so punctuation (".", "-", "/", ":", "+") and operator words (AND, OR, NOT,
// NEAR) are matched literally instead of being parsed as syntax. Embedded
// quotes are stripped first. An input that sanitizes to nothing yields "".
func sanitizeFTSQuery(query string) string {
	var out []string
	for _, tok := range strings.Fields(query) {
		tok = strings.ReplaceAll(tok, `"`, "")
		if tok == "" {
			continue
		}
		out = append(out, `"`+tok+`"`)
	}
	return strings.Join(out, " ")
}
