// Package assistant answers questions about indexed folders. It ties the
// embedding stores, ranking, token budgeting and question history to the
// chat and embedding providers.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/folders"
	"github.com/codesage/sage/internal/gitdiff"
	"github.com/codesage/sage/internal/graph"
	"github.com/codesage/sage/internal/history"
	"github.com/codesage/sage/internal/index"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/observability"
	"github.com/codesage/sage/internal/retrieval"
	"github.com/codesage/sage/internal/translate"
	"github.com/codesage/sage/internal/vector"
)

var (
	// ErrSingleFolder is returned by AnalyzeChanges unless exactly one folder
	// is selected.
	ErrSingleFolder = errors.New("change analysis needs exactly one selected folder")
	// ErrNoMirror is returned by SearchRemote when no vector mirror is configured.
	ErrNoMirror = errors.New("no vector mirror configured")
)

// Deps are the collaborators of an Assistant. Chat, Embedder, History and
// Folders are required.
type Deps struct {
	Chat     llm.Provider
	Embedder llm.Provider
	// Filter rewrites context when filter_content is on. Defaults to Chat.
	Filter      llm.Provider
	ChatOptions *llm.RequestOptions

	History *history.Store
	Folders *folders.Registry
	Stores  *index.StoreCache
	Counter retrieval.TokenCounter
	Git     gitdiff.Git

	Translator *translate.Translator
	Mirror     *vector.Mirror
	Citations  graph.Repository

	Logger *zap.Logger
	Now    func() time.Time
}

// Assistant runs questions, index refreshes and change analyses.
type Assistant struct {
	chat        llm.Provider
	embedder    llm.Provider
	filter      llm.Provider
	chatOptions *llm.RequestOptions

	history *history.Store
	folders *folders.Registry
	stores  *index.StoreCache
	counter retrieval.TokenCounter
	git     gitdiff.Git

	translator *translate.Translator
	mirror     *vector.Mirror
	citations  graph.Repository

	logger *zap.Logger
	now    func() time.Time
}

// New validates d and fills defaults for the optional collaborators.
func New(d Deps) (*Assistant, error) {
	switch {
	case d.Chat == nil:
		return nil, fmt.Errorf("assistant: chat provider is required")
	case d.Embedder == nil:
		return nil, fmt.Errorf("assistant: embedding provider is required")
	case d.History == nil:
		return nil, fmt.Errorf("assistant: history store is required")
	case d.Folders == nil:
		return nil, fmt.Errorf("assistant: folder registry is required")
	}

	a := &Assistant{
		chat:        d.Chat,
		embedder:    d.Embedder,
		filter:      d.Filter,
		chatOptions: d.ChatOptions,
		history:     d.History,
		folders:     d.Folders,
		stores:      d.Stores,
		counter:     d.Counter,
		git:         d.Git,
		translator:  d.Translator,
		mirror:      d.Mirror,
		citations:   d.Citations,
		logger:      d.Logger,
		now:         d.Now,
	}
	if a.filter == nil {
		a.filter = a.chat
	}
	if a.stores == nil {
		a.stores = index.NewStoreCache(10 * time.Minute)
	}
	if a.counter == nil {
		a.counter = retrieval.EstimateCounter{}
	}
	if a.git == nil {
		a.git = gitdiff.NewCLI()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// Selected returns the folders questions are answered from.
func (a *Assistant) Selected() ([]string, error) {
	return a.folders.Selected()
}

// DeleteQuestion removes a question from the history and from the citation
// graph when one is configured.
func (a *Assistant) DeleteQuestion(ctx context.Context, id uint64) (bool, error) {
	found, err := a.history.Delete(id)
	if err != nil || !found {
		return found, err
	}
	a.forget(ctx, []uint64{id})
	return true, nil
}

// Cited lists the questions whose context included a file.
func (a *Assistant) Cited(ctx context.Context, folder, filename string) ([]graph.CitingQuestion, error) {
	if a.citations == nil {
		return nil, fmt.Errorf("no citation graph configured")
	}
	return a.citations.QuestionsCiting(ctx, graph.CitedFile{Folder: folder, Filename: filename})
}

// rankOptions maps settings to ranking options.
func rankOptions(s config.Settings) retrieval.RankOptions {
	return retrieval.RankOptions{
		Filter:    FileFilter(s),
		Essential: s.EssentialFiles,
		Threshold: s.SimilarityThreshold,
		TopK:      s.TopK,
	}
}

// FileFilter maps settings to the index file filter.
func FileFilter(s config.Settings) index.Filter {
	return index.Filter{
		Extensions:    s.Extensions,
		IgnoreFolders: s.IgnoreFolders,
		IgnoreFiles:   s.IgnoreFiles,
	}
}

// embed embeds one text inside a tracing span.
func (a *Assistant) embed(ctx context.Context, purpose, text string) ([]float32, error) {
	ctx, span := observability.StartEmbedSpan(ctx, a.embedder.Name(), purpose, len(text))
	defer span.End()
	vec, err := llm.EmbedOne(ctx, a.embedder, text)
	observability.RecordError(span, err)
	return vec, err
}

// complete runs one chat completion inside a tracing span.
func (a *Assistant) complete(ctx context.Context, p llm.Provider, purpose string, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	ctx, span := observability.StartChatSpan(ctx, p.Name(), purpose)
	defer span.End()
	resp, err := p.Complete(ctx, prompt, opts)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.RecordChatUsage(span, resp.Model, resp.InputTokens, resp.OutputTokens)
	return resp, nil
}

// remember inserts a question into the history and records its citations.
func (a *Assistant) remember(ctx context.Context, question, answer string, files []*retrieval.FileCandidate) (*history.InsertResult, error) {
	res, err := a.history.Insert(ctx, question, answer)
	if err != nil {
		return nil, err
	}
	a.forget(ctx, res.Evicted)

	if a.citations != nil && len(files) > 0 {
		c := graph.Citation{QuestionID: res.ID, Title: history.Title(question), AskedAt: a.now()}
		for _, f := range files {
			c.Files = append(c.Files, graph.CitedFile{Folder: f.Folder, Filename: f.Filename})
		}
		if err := a.citations.RecordCitations(ctx, c); err != nil {
			a.logger.Warn("recording citations failed", zap.Uint64("question", res.ID), zap.Error(err))
		}
	}
	return res, nil
}

func (a *Assistant) forget(ctx context.Context, ids []uint64) {
	if a.citations == nil || len(ids) == 0 {
		return
	}
	if err := a.citations.ForgetQuestions(ctx, ids); err != nil {
		a.logger.Warn("removing citations failed", zap.Uint64s("questions", ids), zap.Error(err))
	}
}
