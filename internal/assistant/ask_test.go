package assistant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage/sage/internal/folders"
	"github.com/codesage/sage/internal/history"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/llm/llmtest"
	"github.com/codesage/sage/internal/llm/openai"
	"github.com/codesage/sage/internal/retrieval"
)

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestAsk_AnswersFromContextAndStores(t *testing.T) {
	s := testSettings()
	h := newHarness(t, chatReplying("login lives in auth/login.go"))
	h.indexed(t, s, sampleProject(t))

	ans, err := h.a.Ask(context.Background(), s, "How does login work?")
	require.NoError(t, err)

	names := make([]string, len(ans.Files))
	for i, f := range ans.Files {
		names[i] = f.Filename
	}
	assert.Equal(t, []string{"README.md", "auth/login.go"}, names, "essential first, unrelated file below threshold")
	assert.Empty(t, ans.Answers)
	assert.Equal(t, "login lives in auth/login.go", ans.Text)

	msg := h.chat.LastUserMessage()
	assert.Contains(t, msg, "Question: How does login work?")
	assert.Contains(t, msg, `"filename":"auth/login.go"`)
	assert.NotContains(t, msg, "db/query.go")
	assert.Contains(t, msg, "relevant_answers: none")
	assert.Equal(t, answerSystemPrompt, h.chat.Prompts()[0].SystemPrompt)

	rec, err := h.history.Get(ans.QuestionID)
	require.NoError(t, err)
	assert.Equal(t, "How does login work", rec.Title)
	assert.Equal(t, ans.Text, rec.Answer)
	assert.NotEmpty(t, rec.Embedding)
}

func TestAsk_IncludesRelevantHistory(t *testing.T) {
	s := testSettings()
	h := newHarness(t, chatReplying("see the login handler"))
	h.indexed(t, s, sampleProject(t))
	ctx := context.Background()

	first, err := h.a.Ask(ctx, s, "Where is login handled?")
	require.NoError(t, err)

	second, err := h.a.Ask(ctx, s, "Does login check passwords?")
	require.NoError(t, err)
	require.Len(t, second.Answers, 1)
	assert.Equal(t, first.QuestionID, second.Answers[0].ID)
	assert.Contains(t, h.chat.LastUserMessage(), `"title":"Where is login handled"`)

	s.UseQuestionHistory = false
	third, err := h.a.Ask(ctx, s, "And logout of login?")
	require.NoError(t, err)
	assert.Empty(t, third.Answers)
	assert.Contains(t, h.chat.LastUserMessage(), "relevant_answers: none")
}

func TestAsk_EmbedFailureStoresNothing(t *testing.T) {
	s := testSettings()
	h := newHarness(t, chatReplying("unused"))
	h.embedder.EmbedFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	}

	_, err := h.a.Ask(context.Background(), s, "anything?")
	require.Error(t, err)
	assert.Zero(t, h.chat.CompleteCalls())
	n, err := h.history.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAsk_MalformedEmbeddingResponseStoresNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"embedding": "not-a-vector"`))
	}))
	defer srv.Close()

	s := testSettings()
	chat := chatReplying("unused")
	h := newHarness(t, chat, func(d *Deps) {
		d.Embedder = openai.New("key", "gpt-4o", srv.URL, "text-embedding-3-large")
	})

	_, err := h.a.Ask(context.Background(), s, "What breaks?")
	require.ErrorIs(t, err, llm.ErrMalformedResponse)
	assert.Zero(t, chat.CompleteCalls())
	n, err := h.history.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAsk_ChatFailureStoresNothing(t *testing.T) {
	s := testSettings()
	chat := &llmtest.Provider{CompleteFunc: func(context.Context, *llm.Prompt) (string, error) {
		return "", &llm.StatusError{Provider: "openai", StatusCode: 401, Body: "bad key"}
	}}
	h := newHarness(t, chat)

	_, err := h.a.Ask(context.Background(), s, "hello?")
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	n, _ := h.history.Count()
	assert.Zero(t, n)
}

func TestAsk_FilterContentRewritesAcceptedContext(t *testing.T) {
	s := testSettings()
	s.FilterContent = true
	filter := chatReplying("FILTERED")
	h := newHarness(t, chatReplying("done"), func(d *Deps) { d.Filter = filter })
	h.indexed(t, s, sampleProject(t))

	ans, err := h.a.Ask(context.Background(), s, "How does login work?")
	require.NoError(t, err)
	assert.Equal(t, 2, filter.CompleteCalls(), "one call per accepted file")
	for _, f := range ans.Files {
		assert.Equal(t, "FILTERED", f.Content)
	}
	msg := h.chat.LastUserMessage()
	assert.Contains(t, msg, "FILTERED")
	assert.NotContains(t, msg, "func login()")
}

func TestFilter_FailureReturnsEmpty(t *testing.T) {
	filter := &llmtest.Provider{CompleteFunc: func(context.Context, *llm.Prompt) (string, error) {
		return "", errors.New("timeout")
	}}
	h := newHarness(t, chatReplying("x"), func(d *Deps) { d.Filter = filter })
	assert.Equal(t, "", h.a.Filter(context.Background(), "q", "text"))
}

func TestAsk_BudgetKeepsEssentialFirst(t *testing.T) {
	s := testSettings()
	h := newHarness(t, chatReplying("short"), func(d *Deps) { d.Counter = retrieval.EstimateCounter{} })
	h.indexed(t, s, sampleProject(t))

	question := "login?"
	readme := retrieval.EstimateCounter{}.Count("# readme\n")
	s.MaxTokens = retrieval.EstimateCounter{}.Count(question) + readme

	ans, err := h.a.Ask(context.Background(), s, question)
	require.NoError(t, err)
	require.Len(t, ans.Files, 1)
	assert.Equal(t, "README.md", ans.Files[0].Filename)
	assert.Equal(t, 1, ans.Skipped)
	assert.LessOrEqual(t, ans.TotalTokens, s.MaxTokens)
}

func TestAsk_ReplyLanguagePrefix(t *testing.T) {
	s := testSettings()
	s.ReplyLanguage = "Korean"
	h := newHarness(t, chatReplying("네"))

	_, err := h.a.Ask(context.Background(), s, "hi?")
	require.NoError(t, err)
	assert.Regexp(t, `^Please reply in Korean\.\n\nQuestion: hi\?`, h.chat.LastUserMessage())
}

func TestAsk_RecordsCitations(t *testing.T) {
	s := testSettings()
	g := &memGraph{}
	h := newHarness(t, chatReplying("ok"), func(d *Deps) { d.Citations = g })
	dir := sampleProject(t)
	h.indexed(t, s, dir)
	ctx := context.Background()

	ans, err := h.a.Ask(ctx, s, "How does login work?")
	require.NoError(t, err)

	cited, err := h.a.Cited(ctx, dir, "auth/login.go")
	require.NoError(t, err)
	require.Len(t, cited, 1)
	assert.Equal(t, ans.QuestionID, cited[0].ID)

	found, err := h.a.DeleteQuestion(ctx, ans.QuestionID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []uint64{ans.QuestionID}, g.forgotten)

	_, err = h.history.Get(ans.QuestionID)
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestAsk_EvictionForgetsCitations(t *testing.T) {
	s := testSettings()
	g := &memGraph{}
	h := newHarness(t, chatReplying("ok"), func(d *Deps) { d.Citations = g })
	h.indexed(t, s, sampleProject(t))
	ctx := context.Background()

	var firstID uint64
	for i := 0; i < 11; i++ {
		ans, err := h.a.Ask(ctx, s, "login question?")
		require.NoError(t, err)
		if i == 0 {
			firstID = ans.QuestionID
		}
	}
	assert.Equal(t, []uint64{firstID}, g.forgotten)
}

func TestSearch(t *testing.T) {
	s := testSettings()
	h := newHarness(t, chatReplying("unused"))
	dir := sampleProject(t)
	h.indexed(t, s, dir)

	hits, err := h.a.Search(context.Background(), s, "sql tables")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, Hit{Folder: dir, Filename: "README.md", Similarity: 0, Essential: true}, hits[0])
	assert.Equal(t, "db/query.go", hits[1].Filename)
	assert.InDelta(t, 1.0, hits[1].Similarity, 1e-9)
	assert.Zero(t, h.chat.CompleteCalls())
}

func TestSearchRemote_NoMirror(t *testing.T) {
	h := newHarness(t, chatReplying("unused"))
	_, err := h.a.SearchRemote(context.Background(), testSettings(), "q")
	assert.ErrorIs(t, err, ErrNoMirror)
}

func TestAsk_UnselectedFoldersIgnored(t *testing.T) {
	s := testSettings()
	h := newHarness(t, chatReplying("ok"))
	dir := sampleProject(t)
	h.indexed(t, s, dir)
	require.NoError(t, h.folders.Select(nil))

	ans, err := h.a.Ask(context.Background(), s, "How does login work?")
	require.NoError(t, err)
	assert.Empty(t, ans.Files)

	err = h.folders.Select([]string{"/not/registered"})
	assert.ErrorIs(t, err, folders.ErrNotFound)
}
