package classifier

import "strings"

// edgePunct is trimmed from both ends of every token.
const edgePunct = ".,!?;:()[]{}\"'-"

// Tokenize splits text on whitespace and strips edge punctuation.
// Tokens that are empty after stripping are dropped. Case is kept as-is.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.TrimSpace(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, edgePunct)
		if f == "" {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
