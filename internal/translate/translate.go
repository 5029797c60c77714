// Package translate rewrites non-English line blocks of a text into English
// with a chat model, leaving code and English lines untouched.
package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/source"
)

const instruction = `Translate all non-English text into English in the article below.
Follow these rules strictly:
1. Maintain the original text structure, including spaces and line breaks.
2. If you cannot translate any part, return that part unchanged.
3. Do not add any explanations, comments, or notes about the translation.
4. Do not describe the content or structure of the text.
5. Only return the translated text, nothing else.
---
`

const codePunct = ".,;:!?-_()[]{}'\"`+*&^%$#@~<>|/\\="

// IsEnglishOrCode reports whether text holds only ASCII letters, digits,
// whitespace and common code punctuation.
func IsEnglishOrCode(text string) bool {
	for _, r := range text {
		if unicode.IsSpace(r) || strings.ContainsRune(codePunct, r) {
			continue
		}
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

// Translator sends blocks of consecutive non-English lines to a provider.
type Translator struct {
	provider llm.Provider
	logger   *zap.Logger
}

// New creates a Translator. A nil logger discards output.
func New(p llm.Provider, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{provider: p, logger: logger}
}

// Lines translates text block by block. A block is a run of non-empty lines
// that are not English or code; it ends at an English line, a blank line or
// the end of input. Each translated line gets the leading whitespace of the
// original line at the same position. A failed block keeps its original
// lines.
func (t *Translator) Lines(ctx context.Context, text string) string {
	var (
		out     []string
		pending []string
		indents []string
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		out = append(out, t.block(ctx, pending, indents)...)
		pending, indents = nil, nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		stripped := strings.TrimSpace(line)
		switch {
		case stripped == "":
			flush()
			out = append(out, line)
		case IsEnglishOrCode(stripped):
			flush()
			out = append(out, line)
		default:
			pending = append(pending, stripped)
			indents = append(indents, line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))])
		}
	}
	flush()

	return strings.Join(out, "\n")
}

func (t *Translator) block(ctx context.Context, lines, indents []string) []string {
	translated, err := t.translate(ctx, strings.Join(lines, "\n"))
	if err != nil {
		t.logger.Warn("translation failed, keeping original lines",
			zap.Int("lines", len(lines)), zap.Error(err))
		translated = lines
	}

	out := make([]string, len(translated))
	for i, l := range translated {
		if i < len(indents) {
			l = indents[i] + l
		}
		out[i] = l
	}
	return out
}

func (t *Translator) translate(ctx context.Context, text string) ([]string, error) {
	resp, err := t.provider.Complete(ctx, llm.UserPrompt("", instruction+text+"\n"), &llm.RequestOptions{
		Temperature: llm.Float(0),
	})
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, l := range strings.Split(llm.StripThinkingTags(resp.Content), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty translation")
	}
	return lines, nil
}

// File reads and decodes path, then translates it.
func (t *Translator) File(ctx context.Context, path string) (string, error) {
	content, err := source.Read(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return t.Lines(ctx, content), nil
}
