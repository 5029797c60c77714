package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_Empty(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	if len(warnings) != 0 {
		t.Errorf("empty config should have no warnings, got %v", warnings)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{Provider: "openai"},
	}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "api_key") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected warning about missing api_key")
	}
}

func TestValidate_RoleMissingAPIKey(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{
			Provider: "openai",
			APIKey:   "sk-test",
			Roles: map[string]LLMRoleOverride{
				RoleFilter:     {Provider: "anthropic"},
				RoleTranslator: {Provider: "ollama", Model: "gemma2"},
			},
		},
	}
	warnings := cfg.Validate()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "filter") {
		t.Errorf("expected a single warning for the filter role, got %v", warnings)
	}
}

func TestValidate_InvalidTemperature(t *testing.T) {
	tests := []struct {
		name string
		temp float64
		want bool // true = should warn
	}{
		{"zero", 0, false},
		{"normal", 0.7, false},
		{"max", 2.0, false},
		{"negative", -1, true},
		{"too_high", 3.0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LLM: LLMConfig{Temperature: tt.temp}}
			warnings := cfg.Validate()
			hasWarn := false
			for _, w := range warnings {
				if strings.Contains(w, "temperature") {
					hasWarn = true
				}
			}
			if hasWarn != tt.want {
				t.Errorf("temperature=%.1f: hasWarn=%v, want=%v", tt.temp, hasWarn, tt.want)
			}
		})
	}
}

func TestValidate_NegativeMaxTokens(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{MaxTokens: -100}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "max_tokens") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about negative max_tokens")
	}
}

func TestValidate_LocalProvider(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "ollama"}}
	for _, w := range cfg.Validate() {
		if strings.Contains(w, "api_key") {
			t.Error("'ollama' provider should not warn about missing api_key")
		}
	}
}

func TestResolveForRole(t *testing.T) {
	cfg := LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o",
		APIKey:   "key1",
		Roles: map[string]LLMRoleOverride{
			RoleFilter:     {Model: "gpt-4o-mini"},
			RoleTranslator: {Provider: "ollama", Model: "gemma2"},
		},
	}

	filter := cfg.ResolveForRole(RoleFilter)
	if filter.Provider != "openai" || filter.Model != "gpt-4o-mini" {
		t.Errorf("filter resolved to %s/%s", filter.Provider, filter.Model)
	}
	if filter.APIKey != "key1" {
		t.Errorf("same-provider override should inherit api_key, got %q", filter.APIKey)
	}

	tr := cfg.ResolveForRole(RoleTranslator)
	if tr.Provider != "ollama" || tr.Model != "gemma2" {
		t.Errorf("translator resolved to %s/%s", tr.Provider, tr.Model)
	}
	if tr.APIKey != "" {
		t.Errorf("provider switch must not inherit api_key, got %q", tr.APIKey)
	}

	base := cfg.ResolveForRole("unknown")
	if base.Provider != "openai" {
		t.Errorf("expected base provider=openai, got %s", base.Provider)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "sage.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := DefaultSettings()
	if cfg.Settings.MaxTokens != d.MaxTokens || cfg.Settings.TopK != d.TopK {
		t.Errorf("settings = %+v, want defaults", cfg.Settings)
	}
	if cfg.Settings.SimilarityThreshold != 0.30 {
		t.Errorf("threshold = %v, want 0.30", cfg.Settings.SimilarityThreshold)
	}
	if len(cfg.Settings.EssentialFiles) != 3 || cfg.Settings.EssentialFiles[0] != "README.md" {
		t.Errorf("essential files = %v", cfg.Settings.EssentialFiles)
	}
	if cfg.LLM.EmbedModel != "text-embedding-3-large" {
		t.Errorf("embed model = %s", cfg.LLM.EmbedModel)
	}
	if cfg.LLM.ResolveForRole(RoleFilter).Model != "gpt-4o-mini" {
		t.Errorf("filter role should default to gpt-4o-mini")
	}
	if cfg.LLM.Retry.MaxRetries != 0 {
		t.Errorf("retries should be off by default, got %d", cfg.LLM.Retry.MaxRetries)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "sage.yaml")
	data := `
llm:
  provider: anthropic
  model: claude-sonnet-4-5
settings:
  top_k: 25
  essential_files: ["go.mod", "README.md"]
  extensions: ".go, .md"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SAGE_LLM_API_KEY", "secret")
	t.Setenv("SAGE_SETTINGS_MAX_TOKENS", "1234")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.APIKey != "secret" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.Settings.TopK != 25 || cfg.Settings.MaxTokens != 1234 {
		t.Errorf("top_k=%d max_tokens=%d", cfg.Settings.TopK, cfg.Settings.MaxTokens)
	}
	if got := strings.Join(cfg.Settings.Extensions, "|"); got != ".go|.md" {
		t.Errorf("extensions = %s", got)
	}
	if got := strings.Join(cfg.Settings.EssentialFiles, "|"); got != "go.mod|README.md" {
		t.Errorf("essential files = %s", got)
	}
	if cfg.Path() != path {
		t.Errorf("path = %s", cfg.Path())
	}
}

func TestLoad_InvalidSettings(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "sage.yaml")
	if err := os.WriteFile(path, []byte("settings:\n  top_k: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
