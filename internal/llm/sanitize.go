package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from model output.
// Some local models (e.g. qwen3, deepseek-r1) wrap their reasoning in these
// tags. An unterminated block drops everything after its opening tag.
func StripThinkingTags(s string) string {
	const openTag, closeTag = "<think>", "</think>"
	for {
		start := strings.Index(s, openTag)
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], closeTag)
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len(closeTag):]
	}
	return strings.TrimSpace(s)
}
