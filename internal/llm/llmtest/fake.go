// Package llmtest provides a scriptable llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/codesage/sage/internal/llm"
)

// Provider is a fake llm.Provider. Nil funcs fall back to fixed replies:
// Complete answers "ok" and Embed returns Vectors[text] or Default.
type Provider struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, prompt *llm.Prompt) (string, error)
	EmbedFunc    func(ctx context.Context, texts []string) ([][]float32, error)
	Vectors      map[string][]float32
	Default      []float32

	mu        sync.Mutex
	prompts   []*llm.Prompt
	embedded  []string
	completes int
	embeds    int
}

func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "fake"
	}
	return p.ProviderName
}

func (p *Provider) Complete(ctx context.Context, prompt *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.completes++
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()

	if p.CompleteFunc == nil {
		return &llm.Response{Content: "ok", Model: "fake-model"}, nil
	}
	content, err := p.CompleteFunc(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: content, Model: "fake-model"}, nil
}

func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.embeds++
	p.embedded = append(p.embedded, texts...)
	p.mu.Unlock()

	if p.EmbedFunc != nil {
		return p.EmbedFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := p.Vectors[t]; ok {
			out[i] = v
			continue
		}
		def := p.Default
		if def == nil {
			def = []float32{1, 0}
		}
		out[i] = def
	}
	return out, nil
}

// CompleteCalls returns the number of Complete calls.
func (p *Provider) CompleteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completes
}

// EmbedCalls returns the number of Embed calls.
func (p *Provider) EmbedCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embeds
}

// Prompts returns every prompt passed to Complete, in call order.
func (p *Provider) Prompts() []*llm.Prompt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.Prompt(nil), p.prompts...)
}

// LastUserMessage returns the content of the last user turn sent to Complete.
func (p *Provider) LastUserMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	msgs := p.prompts[len(p.prompts)-1].Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// Embedded returns every text passed to Embed, in call order.
func (p *Provider) Embedded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.embedded...)
}

var _ llm.Provider = (*Provider)(nil)
