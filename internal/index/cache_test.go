package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCache_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"filename":"a.go","content":"x","content_hash":"h","embedding":[1]}`+"\n"), 0o644))

	c := NewStoreCache(time.Minute)
	first, err := c.Load(path)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, c.c.ItemCount())

	again, err := c.Load(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	data := `{"filename":"a.go","content":"x","content_hash":"h","embedding":[1]}
{"filename":"b.go","content":"y","content_hash":"h2","embedding":[2]}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	reloaded, err := c.Load(path)
	require.NoError(t, err)
	assert.Len(t, reloaded, 2)
}

func TestStoreCache_MissingStore(t *testing.T) {
	c := NewStoreCache(time.Minute)
	records, err := c.Load(filepath.Join(t.TempDir(), StoreFileName))
	require.NoError(t, err)
	assert.Empty(t, records)

	c.Invalidate("anything")
	assert.Equal(t, 0, c.c.ItemCount())
}
