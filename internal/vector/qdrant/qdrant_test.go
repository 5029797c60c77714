package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage/sage/internal/vector"
)

func TestToPoints(t *testing.T) {
	docs := []vector.Document{{
		ID:          vector.PointID("/src/app", "main.go"),
		Folder:      "/src/app",
		Filename:    "main.go",
		ContentHash: "abc",
		Vector:      []float32{0.1, 0.2},
	}}

	points := toPoints(docs)
	require.Len(t, points, 1)
	p := points[0]
	assert.Equal(t, docs[0].ID, p.GetId().GetUuid())
	assert.Equal(t, []float32{0.1, 0.2}, p.GetVectors().GetVector().GetData())
	assert.Equal(t, "/src/app", p.GetPayload()[fieldFolder].GetStringValue())
	assert.Equal(t, "main.go", p.GetPayload()[fieldFilename].GetStringValue())
	assert.Equal(t, "abc", p.GetPayload()[fieldHash].GetStringValue())
}

func TestFolderFilter(t *testing.T) {
	f := folderFilter("/src/app")
	require.Len(t, f.GetMust(), 1)
	field := f.GetMust()[0].GetField()
	assert.Equal(t, fieldFolder, field.GetKey())
	assert.Equal(t, "/src/app", field.GetMatch().GetKeyword())
}

func TestNew_LazyConnect(t *testing.T) {
	r, err := New("localhost", 6334, "sage_files")
	require.NoError(t, err)
	assert.Equal(t, "sage_files", r.collection)
	assert.NoError(t, r.Close())
}
