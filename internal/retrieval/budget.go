package retrieval

import "sort"

// Transform is applied to each candidate as it is accepted into a selection.
// It may return a rewritten candidate; the accounted token count is the one
// measured before the transform.
type Transform func(Candidate) Candidate

// Selection is the outcome of packing candidates into a budget.
type Selection struct {
	Items []Candidate
	// TotalTokens includes the reserved tokens.
	TotalTokens int
	Skipped     int
}

// Select greedily packs candidates into maxTokens, of which reserved tokens
// are already spent. Pinned candidates are visited first in input order,
// then the rest by descending similarity. A candidate that would overflow the
// budget is skipped and the scan continues; the scan stops after the first
// visit that leaves the budget exhausted. When reserved already fills the
// budget only the first candidate is visited, and it is taken if it costs
// nothing.
func Select(cands []Candidate, maxTokens, reserved int, transform Transform) Selection {
	sel := Selection{TotalTokens: reserved}
	ordered := make([]Candidate, len(cands))
	copy(ordered, cands)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Pinned() != b.Pinned() {
			return a.Pinned()
		}
		if a.Pinned() {
			return false
		}
		return a.Similarity() > b.Similarity()
	})

	for i, c := range ordered {
		tokens := c.Tokens()
		if sel.TotalTokens+tokens > maxTokens {
			sel.Skipped++
		} else {
			if transform != nil {
				c = transform(c)
			}
			sel.Items = append(sel.Items, c)
			sel.TotalTokens += tokens
		}
		if sel.TotalTokens >= maxTokens {
			sel.Skipped += len(ordered) - i - 1
			break
		}
	}
	return sel
}

// Files returns the file candidates of the selection, in selection order.
func (s Selection) Files() []*FileCandidate {
	var out []*FileCandidate
	for _, c := range s.Items {
		if f, ok := c.(*FileCandidate); ok {
			out = append(out, f)
		}
	}
	return out
}

// Answers returns the answer candidates of the selection, in selection order.
func (s Selection) Answers() []*AnswerCandidate {
	var out []*AnswerCandidate
	for _, c := range s.Items {
		if a, ok := c.(*AnswerCandidate); ok {
			out = append(out, a)
		}
	}
	return out
}
