package assistant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/index"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/observability"
	"github.com/codesage/sage/internal/retrieval"
)

// Analysis is the outcome of AnalyzeChanges.
type Analysis struct {
	Folder string
	Base   string
	// Report has one "# File: name" section per analysed file. It is empty
	// when nothing could be analysed, in which case nothing is stored.
	Report     string
	Files      []string
	Failed     []index.FileError
	QuestionID uint64
}

// AnalyzeChanges reviews every file of the selected folder that differs
// from base. Each diff is embedded to retrieve context from the folder's
// store and sent to the chat model; the combined report is stored in the
// history. A file that fails is listed in Failed and the rest continue.
func (a *Assistant) AnalyzeChanges(ctx context.Context, s config.Settings, base string) (*Analysis, error) {
	selected, err := a.folders.Selected()
	if err != nil {
		return nil, err
	}
	if len(selected) != 1 {
		return nil, fmt.Errorf("%w (%d selected)", ErrSingleFolder, len(selected))
	}
	folder := selected[0]

	names, err := a.git.ChangedFiles(ctx, folder, base)
	if err != nil {
		return nil, fmt.Errorf("list changed files: %w", err)
	}

	ctx, span := observability.StartAnalyzeSpan(ctx, folder, base, len(names))
	defer span.End()

	out := &Analysis{Folder: folder, Base: base}
	var report strings.Builder
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		answer, err := a.analyzeFile(ctx, s, folder, base, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			a.logger.Warn("change analysis failed", zap.String("file", name), zap.Error(err))
			out.Failed = append(out.Failed, index.FileError{Filename: name, Err: err})
			continue
		}
		fmt.Fprintf(&report, "# File: %s\n\n%s\n\n", name, answer)
		out.Files = append(out.Files, name)
	}
	out.Report = report.String()

	if out.Report == "" {
		return out, nil
	}
	question := fmt.Sprintf("Git diff (%s) - %s\n%s", base, a.now().Format("2006-01-02 15:04:05"), folder)
	res, err := a.remember(ctx, question, out.Report, nil)
	if err != nil {
		return nil, err
	}
	out.QuestionID = res.ID
	return out, nil
}

func (a *Assistant) analyzeFile(ctx context.Context, s config.Settings, folder, base, name string) (string, error) {
	diff, err := a.git.Diff(ctx, folder, base, name)
	if err != nil {
		return "", err
	}
	query, err := a.embed(ctx, "diff", diffQuery(name, diff))
	if err != nil {
		return "", fmt.Errorf("embed diff: %w", err)
	}
	files, err := a.relevantFiles(ctx, s, folder, query)
	if err != nil {
		return "", err
	}

	reserved := a.counter.Count(analysisMessage(s.ReplyLanguage, name, diff, nil))
	cands := make([]retrieval.Candidate, len(files))
	for i, f := range files {
		cands[i] = f
	}
	docs := retrieval.Select(cands, s.MaxTokens, reserved, nil).Files()

	msg := analysisMessage(s.ReplyLanguage, name, diff, docs)
	resp, err := a.complete(ctx, a.chat, "analyze", llm.UserPrompt(answerSystemPrompt, msg), a.chatOptions)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return llm.StripThinkingTags(resp.Content), nil
}
