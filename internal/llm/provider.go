// Package llm defines the chat and embedding provider abstraction used by
// sage, along with opt-in retry and rate limiting wrappers.
package llm

import "context"

// Provider is the interface all LLM backends must implement.
type Provider interface {
	// Complete sends a prompt and returns a completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
}

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Prompt is the full input to a completion call.
type Prompt struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// UserPrompt builds a prompt with a system instruction and one user turn.
func UserPrompt(system, user string) *Prompt {
	return &Prompt{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: user}},
	}
}

// RequestOptions tunes a single completion call. Nil fields use the
// provider default.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}

// Response wraps a completion result.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// Int returns a pointer to v, for RequestOptions.
func Int(v int) *int { return &v }

// Float returns a pointer to v, for RequestOptions.
func Float(v float64) *float64 { return &v }
