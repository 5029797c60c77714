package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings_Valid(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())
}

func TestSettings_ValidateRejects(t *testing.T) {
	cases := map[string]func(*Settings){
		"top_k":                func(s *Settings) { s.TopK = 0 },
		"max_tokens":           func(s *Settings) { s.MaxTokens = -1 },
		"history_max":          func(s *Settings) { s.HistoryMax = 0 },
		"similarity_threshold": func(s *Settings) { s.SimilarityThreshold = 1.5 },
		"extensions":           func(s *Settings) { s.Extensions = nil },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			s := DefaultSettings()
			mutate(&s)
			err := s.Validate()
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestSettings_CloneIsDeep(t *testing.T) {
	s := DefaultSettings()
	c := s.Clone()
	c.Extensions[0] = ".changed"
	assert.NotEqual(t, ".changed", s.Extensions[0])
}

func TestUpdateSettings_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sage.yaml")

	s, err := UpdateSettings(path, map[string]string{
		"extensions":     ".go, .md ,",
		"top_k":          "10",
		"filter_content": "on",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{".go", ".md"}, s.Extensions)
	assert.Equal(t, 10, s.TopK)
	assert.True(t, s.FilterContent)

	t.Chdir(t.TempDir())
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{".go", ".md"}, cfg.Settings.Extensions)
	assert.Equal(t, 10, cfg.Settings.TopK)
	assert.True(t, cfg.Settings.FilterContent)
	assert.Equal(t, DefaultSettings().MaxTokens, cfg.Settings.MaxTokens)
}

func TestUpdateSettings_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sage.yaml")

	_, err := UpdateSettings(path, map[string]string{"top_k": "zero"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = UpdateSettings(path, map[string]string{"top_k": "0"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = UpdateSettings(path, map[string]string{"colour": "blue"})
	assert.ErrorIs(t, err, ErrValidation)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing should be written on failure")
}

func TestSettingKeys(t *testing.T) {
	keys := SettingKeys()
	assert.Len(t, keys, len(DefaultSettings().Fields()))
	assert.Contains(t, keys, "essential_files")
}
