package app

import (
	"fmt"
	"time"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/llm/anthropic"
	"github.com/codesage/sage/internal/llm/openai"
)

// openAICompatible are the presets served by the OpenAI client with a
// preset base URL. "custom" requires base_url.
var openAICompatible = []string{"groq", "ollama", "together", "deepseek", "vllm", "lmstudio", "custom"}

// RegisterProviders registers every built-in provider constructor into
// factory. Both binaries use it so the set of providers stays the same.
func RegisterProviders(factory *llm.ProviderFactory) {
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		return anthropic.New(c.APIKey, c.Model, c.BaseURL, c.Timeout), nil
	})
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.BaseURL, c.EmbedModel, openai.WithTimeout(c.Timeout)), nil
	})
	for _, name := range openAICompatible {
		name := name
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = llm.KnownProviders[name]
			}
			if base == "" {
				return nil, fmt.Errorf("provider %q needs base_url", name)
			}
			return openai.New(c.APIKey, c.Model, base, c.EmbedModel,
				openai.WithName(name), openai.WithTimeout(c.Timeout)), nil
		})
	}
}

// ProviderConfig maps an LLM section to the factory config.
func ProviderConfig(c config.LLMConfig) llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:          c.Provider,
		APIKey:            c.APIKey,
		Model:             c.Model,
		BaseURL:           c.BaseURL,
		EmbedModel:        c.EmbedModel,
		Timeout:           c.Timeout,
		MaxRetries:        c.Retry.MaxRetries,
		RetryDelay:        time.Duration(c.Retry.InitialDelayMS) * time.Millisecond,
		MaxDelay:          time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
		RequestsPerMinute: c.RateLimit.RequestsPerMinute,
	}
}

// Providers holds one provider per role. Translator is nil when its
// provider is "none".
type Providers struct {
	Chat       llm.Provider
	Embedder   llm.Provider
	Filter     llm.Provider
	Translator llm.Provider
}

// BuildProviders creates the provider for each role, applying role overrides.
func BuildProviders(factory *llm.ProviderFactory, c config.LLMConfig) (*Providers, error) {
	create := func(role string) (llm.Provider, error) {
		p, err := factory.Create(ProviderConfig(c.ResolveForRole(role)))
		if err != nil {
			return nil, fmt.Errorf("%s provider: %w", role, err)
		}
		return p, nil
	}

	var (
		ps  Providers
		err error
	)
	if ps.Chat, err = create(config.RoleChat); err != nil {
		return nil, err
	}
	if ps.Chat == nil {
		return nil, fmt.Errorf("chat provider: none configured")
	}
	if ps.Embedder, err = create(config.RoleEmbedding); err != nil {
		return nil, err
	}
	if ps.Embedder == nil {
		return nil, fmt.Errorf("embedding provider: none configured")
	}
	if ps.Filter, err = create(config.RoleFilter); err != nil {
		return nil, err
	}
	if ps.Translator, err = create(config.RoleTranslator); err != nil {
		return nil, err
	}
	return &ps, nil
}
