package assistant

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/folders"
	"github.com/codesage/sage/internal/graph"
	"github.com/codesage/sage/internal/history"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/llm/llmtest"
	"github.com/codesage/sage/internal/storage"
)

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

// keywordVector embeds text onto four axes: login, sql, readme and other.
func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, 4)
	for i, kw := range []string{"login", "sql", "readme"} {
		if strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	if v[0] == 0 && v[1] == 0 && v[2] == 0 {
		v[3] = 1
	}
	return v
}

func keywordEmbedder() *llmtest.Provider {
	return &llmtest.Provider{
		ProviderName: "embedder",
		EmbedFunc: func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, t := range texts {
				out[i] = keywordVector(t)
			}
			return out, nil
		},
	}
}

func chatReplying(reply string) *llmtest.Provider {
	return &llmtest.Provider{
		ProviderName: "chat",
		CompleteFunc: func(context.Context, *llm.Prompt) (string, error) { return reply, nil },
	}
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.Extensions = []string{".go", ".md"}
	s.EssentialFiles = []string{"README.md"}
	s.IgnoreFiles = []string{"embeddings.jsonl"}
	s.MaxTokens = 10000
	return s
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func sampleProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"auth/login.go": "package auth\n\nfunc login() {}\n",
		"db/query.go":   "package db\n\n// runs sql\n",
		"README.md":     "# readme\n",
	})
}

type harness struct {
	a        *Assistant
	chat     *llmtest.Provider
	embedder *llmtest.Provider
	history  *history.Store
	folders  *folders.Registry
	graph    *memGraph
}

type option func(*Deps)

func newHarness(t *testing.T, chat *llmtest.Provider, opts ...option) *harness {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "sage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	emb := keywordEmbedder()
	hist, err := history.New(db, history.Options{MaxRecords: 10, Embed: llm.Embedder(emb)})
	require.NoError(t, err)
	reg, err := folders.NewRegistry(db)
	require.NoError(t, err)

	d := Deps{
		Chat:     chat,
		Embedder: emb,
		History:  hist,
		Folders:  reg,
		Now:      func() time.Time { return fixedNow },
	}
	for _, o := range opts {
		o(&d)
	}
	a, err := New(d)
	require.NoError(t, err)

	h := &harness{a: a, chat: chat, embedder: emb, history: hist, folders: reg}
	if g, ok := d.Citations.(*memGraph); ok {
		h.graph = g
	}
	return h
}

// selectFolders registers and selects dirs.
func (h *harness) selectFolders(t *testing.T, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		_, err := h.folders.Add(d)
		require.NoError(t, err)
	}
	require.NoError(t, h.folders.Select(dirs))
}

// indexed registers, selects and indexes dir.
func (h *harness) indexed(t *testing.T, s config.Settings, dir string) {
	t.Helper()
	h.selectFolders(t, dir)
	_, err := h.a.Refresh(context.Background(), s, nil)
	require.NoError(t, err)
}

type memGraph struct {
	mu        sync.Mutex
	citations []graph.Citation
	forgotten []uint64
}

func (g *memGraph) RecordCitations(_ context.Context, c graph.Citation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.citations = append(g.citations, c)
	return nil
}

func (g *memGraph) QuestionsCiting(_ context.Context, file graph.CitedFile) ([]graph.CitingQuestion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []graph.CitingQuestion
	for i := len(g.citations) - 1; i >= 0; i-- {
		c := g.citations[i]
		for _, f := range c.Files {
			if f == file {
				out = append(out, graph.CitingQuestion{ID: c.QuestionID, Title: c.Title, AskedAt: c.AskedAt})
			}
		}
	}
	return out, nil
}

func (g *memGraph) ForgetQuestions(_ context.Context, ids []uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forgotten = append(g.forgotten, ids...)
	return nil
}

func (g *memGraph) Close(context.Context) error { return nil }

// fakeGit serves canned diffs.
type fakeGit struct {
	files []string
	diffs map[string]string
	errs  map[string]error
}

func (g *fakeGit) ChangedFiles(context.Context, string, string) ([]string, error) {
	return g.files, nil
}

func (g *fakeGit) Diff(_ context.Context, _, _, path string) (string, error) {
	if err := g.errs[path]; err != nil {
		return "", err
	}
	return g.diffs[path], nil
}
