package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/index"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/observability"
	"github.com/codesage/sage/internal/retrieval"
	"github.com/codesage/sage/internal/vector"
)

// Answer is the outcome of Ask.
type Answer struct {
	QuestionID  uint64
	Question    string
	Text        string
	Model       string
	Files       []*retrieval.FileCandidate
	Answers     []*retrieval.AnswerCandidate
	TotalTokens int
	Skipped     int
	// EmbedErr is set when the answer was stored without an embedding.
	EmbedErr error
}

// Hit is one file matched by Search.
type Hit struct {
	Folder     string  `json:"folder"`
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
	Essential  bool    `json:"essential,omitempty"`
}

// Ask answers question from the selected folders and the question history,
// then stores the answer. Nothing is stored when embedding the question or
// the chat call fails.
func (a *Assistant) Ask(ctx context.Context, s config.Settings, question string) (*Answer, error) {
	query, err := a.embed(ctx, "question", question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	reserved := a.counter.Count(question)
	folders, err := a.folders.Selected()
	if err != nil {
		return nil, err
	}

	var cands []retrieval.Candidate
	for _, folder := range folders {
		files, err := a.relevantFiles(ctx, s, folder, query)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			cands = append(cands, f)
		}
	}

	if s.UseQuestionHistory {
		answers, err := a.history.QueryRelevant(query, s.SimilarityThreshold, s.MaxTokens-reserved)
		if err != nil {
			return nil, fmt.Errorf("query history: %w", err)
		}
		for _, ans := range answers {
			cands = append(cands, ans)
		}
	}

	var transform retrieval.Transform
	if s.FilterContent {
		transform = a.filterTransform(ctx, question)
	}
	_, span := observability.StartSelectSpan(ctx, len(cands), s.MaxTokens, reserved)
	sel := retrieval.Select(cands, s.MaxTokens, reserved, transform)
	observability.RecordSelection(span, len(sel.Items), sel.Skipped, sel.TotalTokens)
	span.End()

	files, answers := sel.Files(), sel.Answers()
	msg := questionMessage(s.ReplyLanguage, question, files, answers)
	resp, err := a.complete(ctx, a.chat, "answer", llm.UserPrompt(answerSystemPrompt, msg), a.chatOptions)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	text := llm.StripThinkingTags(resp.Content)

	ins, err := a.remember(ctx, question, text, files)
	if err != nil {
		return nil, err
	}

	a.logger.Info("question answered",
		zap.Uint64("id", ins.ID),
		zap.Int("files", len(files)),
		zap.Int("answers", len(answers)),
		zap.Int("tokens", sel.TotalTokens),
		zap.Int("skipped", sel.Skipped),
	)
	return &Answer{
		QuestionID:  ins.ID,
		Question:    question,
		Text:        text,
		Model:       resp.Model,
		Files:       files,
		Answers:     answers,
		TotalTokens: sel.TotalTokens,
		Skipped:     sel.Skipped,
		EmbedErr:    ins.EmbedErr,
	}, nil
}

// relevantFiles ranks one folder's store against query and returns the
// ranked files with their token counts.
func (a *Assistant) relevantFiles(ctx context.Context, s config.Settings, folder string, query []float32) ([]*retrieval.FileCandidate, error) {
	store, err := a.stores.Load(index.StorePath(folder))
	if err != nil {
		return nil, fmt.Errorf("load store of %s: %w", folder, err)
	}

	_, span := observability.StartRankSpan(ctx, folder, len(store))
	defer span.End()
	ranked := retrieval.Rank(query, store, rankOptions(s))

	out := make([]*retrieval.FileCandidate, 0, len(ranked))
	essential := 0
	for _, r := range ranked {
		rec := store[r.Filename]
		if r.Essential {
			essential++
		}
		out = append(out, &retrieval.FileCandidate{
			Folder:     folder,
			Filename:   r.Filename,
			Content:    rec.Content,
			Score:      r.Similarity,
			TokenCount: a.counter.Count(rec.Content),
			Essential:  r.Essential,
		})
	}
	observability.RecordRankResult(span, len(out), essential)
	return out, nil
}

// Filter asks the filter model for the parts of text relevant to question.
// It returns an empty string when the call fails.
func (a *Assistant) Filter(ctx context.Context, question, text string) string {
	prompt := llm.UserPrompt(filterSystemPrompt, fmt.Sprintf(filterTemplate, text, question))
	resp, err := a.complete(ctx, a.filter, "filter", prompt, &llm.RequestOptions{Temperature: llm.Float(0)})
	if err != nil {
		a.logger.Warn("content filter failed", zap.Error(err))
		return ""
	}
	return llm.StripThinkingTags(resp.Content)
}

func (a *Assistant) filterTransform(ctx context.Context, question string) retrieval.Transform {
	return func(c retrieval.Candidate) retrieval.Candidate {
		switch v := c.(type) {
		case *retrieval.FileCandidate:
			cp := *v
			cp.Content = a.Filter(ctx, question, v.Content)
			return &cp
		case *retrieval.AnswerCandidate:
			cp := *v
			cp.Answer = a.Filter(ctx, question, v.Answer)
			return &cp
		}
		return c
	}
}

// Search ranks the selected folders against query without calling the chat
// model or touching the history.
func (a *Assistant) Search(ctx context.Context, s config.Settings, query string) ([]Hit, error) {
	vec, err := a.embed(ctx, "search", query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	folders, err := a.folders.Selected()
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for _, folder := range folders {
		store, err := a.stores.Load(index.StorePath(folder))
		if err != nil {
			return nil, fmt.Errorf("load store of %s: %w", folder, err)
		}
		for _, r := range retrieval.Rank(vec, store, rankOptions(s)) {
			hits = append(hits, Hit{Folder: folder, Filename: r.Filename, Similarity: r.Similarity, Essential: r.Essential})
		}
	}
	return hits, nil
}

// SearchRemote runs the query against the vector mirror. Results are not
// filtered by the local settings other than top_k.
func (a *Assistant) SearchRemote(ctx context.Context, s config.Settings, query string) ([]vector.SearchResult, error) {
	if a.mirror == nil {
		return nil, ErrNoMirror
	}
	vec, err := a.embed(ctx, "search", query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	folders, err := a.folders.Selected()
	if err != nil {
		return nil, err
	}
	return a.mirror.Search(ctx, vec, s.TopK, folders)
}
