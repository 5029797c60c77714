package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codesage/sage/internal/retrieval"
)

const answerSystemPrompt = `You are an AI assistant specialized in answering questions based on provided context.
Your task is to:
1. Analyze the full content of the relevant_docs and relevant_answers provided in the context.
2. Answer the user's question accurately using information from both relevant_docs and relevant_answers.
3. If the context doesn't contain enough information, say so and provide the best possible answer based on your general knowledge.
4. Cite the filenames of relevant documents and the titles of relevant answers in your response.
5. If appropriate, provide code snippets or examples from the context to support your answer.
6. When creating diagrams, use mermaid syntax.`

const filterSystemPrompt = "You are an AI assistant specialized in extracting relevant information."

const filterTemplate = `Return only the parts of 'text:' that are relevant to 'question:', unchanged. Return nothing if no part is relevant.

text:
%s

question:
%s
`

const analysisPrompt = `Analyze the code changes provided in 'Diff:' and refer to the existing code in 'Context:' to generate a detailed report categorized into three sections:

1. Refactoring targets and potential error-prone areas:
   - Complex or duplicated logic
   - Unclear naming
   - Insufficient exception handling
   - Potential bugs or performance issues

2. Clean code principle application areas:
   - Violations of Single Responsibility Principle
   - Function/method length and complexity
   - Necessity of comments or excessive commenting
   - Clarity of variable and function names

3. Other code improvement areas:
   - Potential design pattern applications
   - Areas needing improved testability
   - Code structure and architecture improvements

For each item, please provide specific line numbers and suggestions for improvement. Focus primarily on the changes shown in 'Diff:', but refer to the existing code in 'Context:' when necessary for a comprehensive analysis.`

func languagePrefix(lang string) string {
	if lang == "" {
		return ""
	}
	return fmt.Sprintf("Please reply in %s.\n\n", lang)
}

// questionMessage renders the user turn of an answer request.
func questionMessage(lang, question string, docs []*retrieval.FileCandidate, answers []*retrieval.AnswerCandidate) string {
	if docs == nil {
		docs = []*retrieval.FileCandidate{}
	}
	var b strings.Builder
	b.WriteString(languagePrefix(lang))
	fmt.Fprintf(&b, "Question: %s\n\nrelevant_docs:\n%s\n\n", question, contextJSON(docs, false))
	if len(answers) == 0 {
		b.WriteString("relevant_answers: none")
	} else {
		fmt.Fprintf(&b, "relevant_answers: \n%s", contextJSON(answers, false))
	}
	return b.String()
}

// analysisMessage renders the user turn for one changed file.
func analysisMessage(lang, filename, diff string, docs []*retrieval.FileCandidate) string {
	if docs == nil {
		docs = []*retrieval.FileCandidate{}
	}
	return fmt.Sprintf("Question: %s%s\n\nFilename: %s\n\nDiff:\n%s\n\nContext:\n%s",
		languagePrefix(lang), analysisPrompt, filename, diff, contextJSON(docs, true))
}

// diffQuery is the text embedded to find context for a changed file.
func diffQuery(filename, diff string) string {
	return fmt.Sprintf("Filename:%s\n\nDiff:\n%s", filename, diff)
}

// contextJSON encodes v without escaping HTML characters, which are common
// in source code.
func contextJSON(v any, indent bool) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimRight(buf.String(), "\n")
}
