package llm

import (
	"context"
	"sync"
)

// mockProvider returns queued results in order and counts calls.
type mockProvider struct {
	name string

	mu        sync.Mutex
	calls     int
	responses []*Response
	vectors   [][][]float32
	errs      []error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) next() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return i, m.errs[i]
	}
	return i, nil
}

func (m *mockProvider) Complete(ctx context.Context, _ *Prompt, _ *RequestOptions) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i, err := m.next()
	if err != nil {
		return nil, err
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return &Response{Content: "ok"}, nil
}

func (m *mockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i, err := m.next()
	if err != nil {
		return nil, err
	}
	if i < len(m.vectors) {
		return m.vectors[i], nil
	}
	out := make([][]float32, len(texts))
	for j := range texts {
		out[j] = []float32{1}
	}
	return out, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
