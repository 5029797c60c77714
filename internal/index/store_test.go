package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile(t *testing.T) {
	records, err := Load(filepath.Join(t.TempDir(), StoreFileName))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoad_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	data := `{"filename":"a.go","content":"x","content_hash":"h1","embedding":[1,0]}

{"filename":"b.go","content":"y","content_hash":"h2","embedding":[0,1]}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	records, err := Load(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "x", records["a.go"].Content)
	assert.Equal(t, []float32{0, 1}, records["b.go"].Embedding)
}

func TestLoad_MalformedLineFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	data := `{"filename":"a.go","content":"x","content_hash":"h1","embedding":[1]}
{"filename": "b.go", broken
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad_MissingFilenameFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"content":"x"}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestLoad_LastLineWithoutNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"filename":"a.go","content":"x","content_hash":"h","embedding":[1]}`), 0o644))

	records, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, records, "a.go")
}
