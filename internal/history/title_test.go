package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"How does indexing work? Explain.": "How does indexing work",
		"Fix the bug. Then test.":          "Fix the bug",
		"First line\nsecond line":          "First line",
		"  padded question  ":              "padded question",
		"?starts with a mark":              "?starts with a mark",
		"":                                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Title(in), in)
	}
}
