package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage/sage/internal/assistant"
	"github.com/codesage/sage/internal/retrieval"
)

func TestParseUpdates(t *testing.T) {
	got, err := parseUpdates([]string{"top_k=10", " extensions =.go,.md", "reply_language="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"top_k": "10", "extensions": ".go,.md", "reply_language": ""}, got)

	_, err = parseUpdates([]string{"top_k"})
	assert.ErrorContains(t, err, "key=value")
	_, err = parseUpdates([]string{"=3"})
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, raw := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

func TestAnswerView(t *testing.T) {
	v := answerView(&assistant.Answer{
		QuestionID: 3,
		Question:   "how?",
		Text:       "like this",
		Files: []*retrieval.FileCandidate{
			{Folder: "/p", Filename: "README.md", Score: 0, TokenCount: 12, Essential: true},
			{Folder: "/p", Filename: "a.go", Score: 0.8, TokenCount: 30},
		},
		Answers:     []*retrieval.AnswerCandidate{{ID: 1, Title: "earlier", Score: 0.7}},
		TotalTokens: 50,
		Skipped:     2,
	})
	assert.Equal(t, "like this", v.Answer)
	require.Len(t, v.Files, 2)
	assert.True(t, v.Files[0].Essential)
	assert.Equal(t, 30, v.Files[1].Tokens)
	assert.Equal(t, []answerItem{{ID: 1, Title: "earlier", Similarity: 0.7}}, v.Answers)
	assert.Equal(t, 2, v.Skipped)
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"index", "ask", "search", "history", "folders", "settings", "analyze", "translate", "graph", "providers"})
}
