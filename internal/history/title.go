package history

import "strings"

// Title derives a short title from a question: the text before the first
// '.', '?' or newline, trimmed. A question whose first segment is empty
// keeps the whole question as its title.
func Title(question string) string {
	if i := strings.IndexAny(question, ".?\n"); i >= 0 {
		if t := strings.TrimSpace(question[:i]); t != "" {
			return t
		}
	}
	return strings.TrimSpace(question)
}
