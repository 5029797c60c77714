package retrieval

import (
	"sort"

	"github.com/codesage/sage/internal/index"
)

// RankOptions controls which stored files are returned by Rank.
type RankOptions struct {
	Filter    index.Filter
	Essential []string
	Threshold float64
	TopK      int
}

// Ranked is one file selected by Rank.
type Ranked struct {
	Filename   string
	Similarity float64
	Essential  bool
}

// Rank scores every record in store against query. Essential files present
// in the store are always returned first, in the order they are listed, and
// bypass the filter and the threshold. The remaining files must pass the
// filter and reach the threshold; they follow in descending similarity, ties
// broken by filename, truncated so the total never exceeds TopK unless the
// essentials alone do.
func Rank(query []float32, store map[string]*index.Record, opts RankOptions) []Ranked {
	essential := make(map[string]struct{}, len(opts.Essential))
	var out []Ranked
	for _, name := range opts.Essential {
		if _, dup := essential[name]; dup {
			continue
		}
		essential[name] = struct{}{}
		rec, ok := store[name]
		if !ok {
			continue
		}
		out = append(out, Ranked{Filename: name, Similarity: Cosine(query, rec.Embedding), Essential: true})
	}

	var rest []Ranked
	for name, rec := range store {
		if _, ok := essential[name]; ok {
			continue
		}
		if !opts.Filter.Accepts(name) {
			continue
		}
		sim := Cosine(query, rec.Embedding)
		if sim < opts.Threshold {
			continue
		}
		rest = append(rest, Ranked{Filename: name, Similarity: sim})
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Similarity != rest[j].Similarity {
			return rest[i].Similarity > rest[j].Similarity
		}
		return rest[i].Filename < rest[j].Filename
	})

	limit := opts.TopK - len(out)
	if limit < 0 {
		limit = 0
	}
	if len(rest) > limit {
		rest = rest[:limit]
	}
	return append(out, rest...)
}
