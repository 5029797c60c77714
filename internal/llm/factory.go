package llm

import (
	"fmt"
	"sort"
	"time"
)

// ProviderConfig holds all configuration needed to create any LLM provider.
type ProviderConfig struct {
	Provider   string // "anthropic", "openai", "groq", "ollama", ...
	APIKey     string
	Model      string
	BaseURL    string // Override for self-hosted / custom endpoints
	EmbedModel string // Embedding model (OpenAI-compatible providers only)

	// Timeout bounds each request. Zero uses the client default.
	Timeout time.Duration

	// Retries are off unless MaxRetries is positive.
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration

	// RequestsPerMinute throttles calls when positive.
	RequestsPerMinute int
}

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// NewFactory creates an empty factory; callers register constructors.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. Returns nil (no error) when provider is
// empty or "none". Retry and rate limiting wrappers are applied only when
// the config asks for them.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		return nil, nil
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (registered: %v)", cfg.Provider, f.Names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries > 0 {
		provider = WrapWithRetry(provider, cfg)
	}
	if cfg.RequestsPerMinute > 0 {
		provider = WithRateLimit(provider, &RateLimitConfig{RequestsPerMinute: cfg.RequestsPerMinute})
	}
	return provider, nil
}

// Names lists the registered provider names, sorted.
func (f *ProviderFactory) Names() []string {
	out := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders documents the built-in provider presets.
// OpenAI-compatible APIs use the "openai" client with the preset base URL.
var KnownProviders = map[string]string{
	"anthropic": "https://api.anthropic.com/v1",
	"openai":    "https://api.openai.com/v1",
	"groq":      "https://api.groq.com/openai/v1",
	"ollama":    "http://localhost:11434/v1",
	"together":  "https://api.together.xyz/v1",
	"deepseek":  "https://api.deepseek.com/v1",
	"vllm":      "http://localhost:8000/v1",
	"lmstudio":  "http://localhost:1234/v1",
}
