package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/codesage/sage/internal/assistant"
	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/folders"
	"github.com/codesage/sage/internal/graph"
	"github.com/codesage/sage/internal/history"
	"github.com/codesage/sage/internal/index"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/temporal"
)

var (
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	cyan    = color.New(color.FgCyan).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	red     = color.New(color.FgRed, color.Bold).SprintFunc()
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
)

const timeLayout = "2006-01-02 15:04"

// stdout receives all command output.
var stdout io.Writer = os.Stdout

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(stdout, faint(fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(stdout, green("✓ ") + fmt.Sprintf(format, args...))
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printRebuild(r *index.RebuildResult) {
	mark := green("✓")
	if len(r.Errors) > 0 {
		mark = yellow("!")
	}
	fmt.Fprintf(stdout, "%s %s\n", mark, r.Summary())
	for _, e := range r.Errors {
		fmt.Fprintf(stdout, "    %s %s\n", yellow("failed"), e.Error())
	}
}

func printFolderResult(r temporal.FolderResult) {
	if r.Error != "" {
		fmt.Fprintf(stdout, "%s %s: %s\n", red("✗"), r.Folder, r.Error)
		return
	}
	mark := green("✓")
	if len(r.Failed) > 0 {
		mark = yellow("!")
	}
	fmt.Fprintf(stdout, "%s %s: %d written (%d reused, %d embedded), %d removed, %d failed\n",
		mark, r.Folder, r.Written, r.Reused, r.Embedded, len(r.Deleted), len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(stdout, "    %s %s\n", yellow("failed"), f)
	}
}

type sourceItem struct {
	Folder     string  `json:"folder"`
	Filename   string  `json:"filename"`
	Similarity float64 `json:"similarity"`
	Tokens     int     `json:"tokens"`
	Essential  bool    `json:"essential,omitempty"`
}

type answerItem struct {
	ID         uint64  `json:"id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

type answerJSON struct {
	QuestionID  uint64       `json:"question_id"`
	Question    string       `json:"question"`
	Answer      string       `json:"answer"`
	Model       string       `json:"model,omitempty"`
	Files       []sourceItem `json:"files"`
	Answers     []answerItem `json:"answers,omitempty"`
	TotalTokens int          `json:"total_tokens"`
	Skipped     int          `json:"skipped"`
}

func answerView(a *assistant.Answer) answerJSON {
	out := answerJSON{
		QuestionID:  a.QuestionID,
		Question:    a.Question,
		Answer:      a.Text,
		Model:       a.Model,
		Files:       make([]sourceItem, len(a.Files)),
		TotalTokens: a.TotalTokens,
		Skipped:     a.Skipped,
	}
	for i, f := range a.Files {
		out.Files[i] = sourceItem{Folder: f.Folder, Filename: f.Filename, Similarity: f.Score, Tokens: f.TokenCount, Essential: f.Essential}
	}
	for _, c := range a.Answers {
		out.Answers = append(out.Answers, answerItem{ID: c.ID, Title: c.Title, Similarity: c.Score})
	}
	return out
}

func printAnswer(a *assistant.Answer) {
	fmt.Fprintln(stdout, a.Text)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, heading("Sources"))
	for _, f := range a.Files {
		tag := ""
		if f.Essential {
			tag = " " + yellow("[essential]")
		}
		fmt.Fprintf(stdout, "  %s %s%s %s\n", cyan(fmt.Sprintf("%.3f", f.Score)), f.Filename, tag, faint(f.Folder))
	}
	for _, c := range a.Answers {
		fmt.Fprintf(stdout, "  %s #%d %s\n", cyan(fmt.Sprintf("%.3f", c.Score)), c.ID, c.Title)
	}
	fmt.Fprintln(stdout, faint(fmt.Sprintf("question #%d, %d context tokens, %d skipped", a.QuestionID, a.TotalTokens, a.Skipped)))
}

func printHit(folder, filename string, similarity float64, essential bool) {
	tag := ""
	if essential {
		tag = " " + yellow("[essential]")
	}
	fmt.Fprintf(stdout, "%s %s%s %s\n", cyan(fmt.Sprintf("%.3f", similarity)), filename, tag, faint(folder))
}

type historyItem struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedded  bool      `json:"embedded"`
	CreatedAt time.Time `json:"created_at"`
}

func historyView(r *history.Record) historyItem {
	return historyItem{
		ID:        r.ID,
		Title:     r.Title,
		Question:  r.Question,
		Answer:    r.Answer,
		Embedded:  len(r.Embedding) > 0,
		CreatedAt: r.CreatedAt,
	}
}

func printHistoryLine(r *history.Record) {
	fmt.Fprintf(stdout, "%s %s %s\n", cyan(fmt.Sprintf("#%-4d", r.ID)), faint(r.CreatedAt.Local().Format(timeLayout)), r.Title)
}

func printHistoryRecord(r *history.Record) {
	fmt.Fprintf(stdout, "%s %s\n", heading(fmt.Sprintf("#%d", r.ID)), bold(r.Title))
	fmt.Fprintln(stdout, faint(r.CreatedAt.Local().Format(timeLayout)))
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, heading("Question"))
	fmt.Fprintln(stdout, r.Question)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, heading("Answer"))
	fmt.Fprintln(stdout, r.Answer)
}

func printFolder(f *folders.Folder) {
	mark := " "
	if f.Selected {
		mark = green("*")
	}
	fmt.Fprintf(stdout, "%s %s %s\n", mark, f.Path, faint(f.AddedAt.Local().Format(timeLayout)))
}

func printSettings(s config.Settings) {
	for _, kv := range s.Fields() {
		fmt.Fprintf(stdout, "%s %s\n", cyan(fmt.Sprintf("%-22s", kv[0])), kv[1])
	}
}

func printAnalysis(a *assistant.Analysis) {
	if a.Report != "" {
		fmt.Fprintln(stdout, a.Report)
	}
	for _, f := range a.Failed {
		fmt.Fprintf(stdout, "%s %s\n", yellow("failed"), f.Error())
	}
	switch {
	case len(a.Files) == 0 && len(a.Failed) == 0:
		printInfo("No changes against %s in %s", a.Base, a.Folder)
	case a.QuestionID != 0:
		printInfo("Stored as question #%d", a.QuestionID)
	}
}

func printCiting(q graph.CitingQuestion) {
	fmt.Fprintf(stdout, "%s %s %s\n", cyan(fmt.Sprintf("#%-4d", q.ID)), faint(q.AskedAt.Local().Format(timeLayout)), q.Title)
}

func printProviders() {
	names := make([]string, 0, len(llm.KnownProviders))
	for name := range llm.KnownProviders {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(stdout, "Available LLM providers:")
	fmt.Fprintln(stdout)
	for _, name := range names {
		fmt.Fprintf(stdout, "  %-14s %s\n", name, llm.KnownProviders[name])
	}
	fmt.Fprintln(stdout, "  custom         (set base_url to any OpenAI-compatible endpoint)")
	fmt.Fprintln(stdout, "  none           (disable a role, e.g. the translator)")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Configure in sage.yaml or via environment:")
	fmt.Fprintln(stdout, "  SAGE_LLM_PROVIDER=groq")
	fmt.Fprintln(stdout, "  SAGE_LLM_API_KEY=gsk_...")
	fmt.Fprintln(stdout, "  SAGE_LLM_MODEL=llama-3.3-70b-versatile")
	fmt.Fprintln(stdout, "Per-role overrides live under llm.roles (chat, embedding, filter, translator).")
}
