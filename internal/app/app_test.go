package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/llm/llmtest"
)

// recordingFactory builds fakes and remembers the config each role got.
func recordingFactory(seen map[string]llm.ProviderConfig) *llm.ProviderFactory {
	f := llm.NewFactory()
	for _, name := range []string{"openai", "ollama", "anthropic"} {
		name := name
		f.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			seen[name+"/"+c.Model] = c
			return &llmtest.Provider{ProviderName: name}, nil
		})
	}
	return f
}

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "sage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func TestRegisterProviders(t *testing.T) {
	f := llm.NewFactory()
	RegisterProviders(f)
	assert.Equal(t, []string{"anthropic", "custom", "deepseek", "groq", "lmstudio", "ollama", "openai", "together", "vllm"}, f.Names())

	p, err := f.Create(llm.ProviderConfig{Provider: "ollama", Model: "gemma2"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	_, err = f.Create(llm.ProviderConfig{Provider: "custom", Model: "m"})
	assert.ErrorContains(t, err, "base_url")

	p, err = f.Create(llm.ProviderConfig{Provider: "custom", Model: "m", BaseURL: "http://localhost:9999/v1"})
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Name())
}

func TestProviderConfig(t *testing.T) {
	got := ProviderConfig(config.LLMConfig{
		Provider:   "groq",
		Model:      "llama",
		APIKey:     "k",
		EmbedModel: "e",
		Timeout:    time.Minute,
		Retry:      config.RetryConfig{MaxRetries: 3, InitialDelayMS: 250, MaxDelayMS: 4000},
		RateLimit:  config.RateLimitConfig{RequestsPerMinute: 30},
	})
	assert.Equal(t, llm.ProviderConfig{
		Provider:          "groq",
		APIKey:            "k",
		Model:             "llama",
		EmbedModel:        "e",
		Timeout:           time.Minute,
		MaxRetries:        3,
		RetryDelay:        250 * time.Millisecond,
		MaxDelay:          4 * time.Second,
		RequestsPerMinute: 30,
	}, got)
}

func TestBuildProviders_RoleOverrides(t *testing.T) {
	cfg := loadConfig(t, "llm:\n  api_key: sk-test\n")
	seen := map[string]llm.ProviderConfig{}

	ps, err := BuildProviders(recordingFactory(seen), cfg.LLM)
	require.NoError(t, err)
	assert.Equal(t, "openai", ps.Chat.Name())
	assert.Equal(t, "openai", ps.Filter.Name())
	assert.Equal(t, "ollama", ps.Translator.Name())

	assert.Contains(t, seen, "openai/gpt-4o")
	assert.Contains(t, seen, "openai/gpt-4o-mini")
	assert.Equal(t, "sk-test", seen["openai/gpt-4o-mini"].APIKey)
	assert.Empty(t, seen["ollama/gemma2"].APIKey)
}

func TestBuildProviders_NoChat(t *testing.T) {
	cfg := loadConfig(t, "llm:\n  provider: none\n")
	_, err := BuildProviders(recordingFactory(map[string]llm.ProviderConfig{}), cfg.LLM)
	assert.ErrorContains(t, err, "chat provider")
}

func TestBuildProviders_TranslatorDisabled(t *testing.T) {
	cfg := loadConfig(t, "llm:\n  roles:\n    translator:\n      provider: none\n")
	ps, err := BuildProviders(recordingFactory(map[string]llm.ProviderConfig{}), cfg.LLM)
	require.NoError(t, err)
	assert.Nil(t, ps.Translator)
}

func TestNew_WiresAssistant(t *testing.T) {
	cfg := loadConfig(t, "settings:\n  history_max: 5\n")
	ctx := context.Background()

	a, err := New(ctx, cfg, recordingFactory(map[string]llm.ProviderConfig{}), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(ctx) })

	require.NotNil(t, a.Assistant)
	assert.FileExists(t, cfg.Storage.DBPath())
	assert.Equal(t, 5, a.Settings().HistoryMax)

	folder := t.TempDir()
	_, err = a.Folders.Add(folder)
	require.NoError(t, err)
	require.NoError(t, a.Folders.Select([]string{folder}))
	selected, err := a.Assistant.Selected()
	require.NoError(t, err)
	assert.Equal(t, []string{folder}, selected)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := loadConfig(t, "llm:\n  provider: mystery\n")
	_, err := New(context.Background(), cfg, recordingFactory(map[string]llm.ProviderConfig{}), zap.NewNop())
	assert.ErrorContains(t, err, "mystery")
}

func TestTokenCounter_Fallback(t *testing.T) {
	c := tokenCounter("no-such-model", zap.NewNop())
	assert.Positive(t, c.Count("hello world"))
}
