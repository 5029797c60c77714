// Package openai implements llm.Provider for OpenAI and OpenAI-compatible
// APIs (Ollama, Groq, vLLM, LM Studio, ...).
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/codesage/sage/internal/llm"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultEmbedModel = "text-embedding-3-large"
	defaultTimeout    = 5 * time.Minute
)

// Client implements llm.Provider for OpenAI-compatible APIs.
type Client struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	embedModel string
	http       *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithName reports a preset name (e.g. "ollama") instead of "openai".
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// New creates an OpenAI-compatible provider.
func New(apiKey, model, baseURL, embedModel string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	c := &Client{
		name:       "openai",
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		embedModel: embedModel,
		http:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	var msgs []llm.Message
	if prompt.SystemPrompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: prompt.SystemPrompt})
	}
	msgs = append(msgs, prompt.Messages...)

	body := map[string]any{
		"model":    c.model,
		"messages": msgs,
	}
	if opts != nil {
		if opts.MaxTokens != nil {
			body["max_tokens"] = *opts.MaxTokens
		}
		if opts.Temperature != nil {
			body["temperature"] = *opts.Temperature
		}
		if opts.TopP != nil {
			body["top_p"] = *opts.TopP
		}
		if len(opts.StopSeqs) > 0 {
			body["stop"] = opts.StopSeqs
		}
	}

	respBody, err := llm.PostJSON(ctx, c.http, c.name, c.baseURL+"/chat/completions", c.headers(), body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Model string `json:"model"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, llm.Malformed(c.name, err)
	}
	if len(result.Choices) == 0 {
		return nil, llm.Malformed(c.name, fmt.Errorf("no choices"))
	}

	return &llm.Response{
		Content:      result.Choices[0].Message.Content,
		Model:        result.Model,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		StopReason:   result.Choices[0].FinishReason,
	}, nil
}

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}
	respBody, err := llm.PostJSON(ctx, c.http, c.name, c.baseURL+"/embeddings", c.headers(), body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, llm.Malformed(c.name, err)
	}
	if len(result.Data) != len(texts) {
		return nil, llm.Malformed(c.name, fmt.Errorf("got %d embeddings for %d inputs", len(result.Data), len(texts)))
	}

	embeddings := make([][]float32, len(texts))
	for i, d := range result.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) || embeddings[idx] != nil {
			idx = i
		}
		if len(d.Embedding) == 0 {
			return nil, llm.Malformed(c.name, fmt.Errorf("empty embedding at index %d", idx))
		}
		embeddings[idx] = d.Embedding
	}
	return embeddings, nil
}
