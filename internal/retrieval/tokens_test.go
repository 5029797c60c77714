package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCounter(t *testing.T) {
	var c EstimateCounter
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 2, c.Count("abcdefgh"))
	assert.Equal(t, 1, c.Count("한글"))
}

func TestTiktokenCounter(t *testing.T) {
	c, err := NewTiktokenCounter("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 2, c.Count("hello world"))
}

func TestTiktokenCounter_UnknownModel(t *testing.T) {
	_, err := NewTiktokenCounter("definitely-not-a-model")
	assert.Error(t, err)
}
