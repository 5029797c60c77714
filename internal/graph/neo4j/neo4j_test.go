package neo4j

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage/sage/internal/graph"
)

func TestRecordParams(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("KST", 9*3600))
	p := recordParams(graph.Citation{
		QuestionID: 7,
		Title:      "How is auth wired",
		AskedAt:    at,
		Files: []graph.CitedFile{
			{Folder: "/src/app", Filename: "auth/login.go"},
			{Folder: "/src/app", Filename: "README.md"},
		},
	})

	assert.Equal(t, int64(7), p["id"])
	assert.Equal(t, "2026-03-01T00:30:00Z", p["asked_at"])
	files := p["files"].([]any)
	require.Len(t, files, 2)
	assert.Equal(t, map[string]any{"folder": "/src/app", "filename": "auth/login.go"}, files[0])
}

func TestToCitingQuestion(t *testing.T) {
	rec := &neo4j.Record{
		Keys:   []string{"id", "title", "asked_at"},
		Values: []any{int64(3), "Where are routes", "2026-03-01T00:30:00Z"},
	}
	q := toCitingQuestion(rec)
	assert.Equal(t, uint64(3), q.ID)
	assert.Equal(t, "Where are routes", q.Title)
	assert.Equal(t, 2026, q.AskedAt.Year())
}

// TestRepository_RoundTrip runs against a live server when SAGE_NEO4J_URI is set.
func TestRepository_RoundTrip(t *testing.T) {
	uri := os.Getenv("SAGE_NEO4J_URI")
	if uri == "" {
		t.Skip("SAGE_NEO4J_URI not set")
	}
	ctx := context.Background()
	repo, err := New(ctx, uri, os.Getenv("SAGE_NEO4J_USERNAME"), os.Getenv("SAGE_NEO4J_PASSWORD"))
	require.NoError(t, err)
	defer repo.Close(ctx)

	file := graph.CitedFile{Folder: t.TempDir(), Filename: "main.go"}
	id := uint64(time.Now().UnixNano() & 0x7fffffff)
	require.NoError(t, repo.RecordCitations(ctx, graph.Citation{
		QuestionID: id, Title: "entry point", AskedAt: time.Now(), Files: []graph.CitedFile{file},
	}))
	defer repo.ForgetQuestions(ctx, []uint64{id})

	qs, err := repo.QuestionsCiting(ctx, file)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, id, qs[0].ID)
}
