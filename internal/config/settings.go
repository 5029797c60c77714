package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is returned when settings fail validation.
var ErrValidation = errors.New("invalid settings")

// Settings are the retrieval settings. They are passed by value and never
// mutated after loading; UpdateSettings writes a new copy to disk.
type Settings struct {
	Extensions          []string `mapstructure:"extensions" validate:"min=1,dive,required"`
	IgnoreFolders       []string `mapstructure:"ignore_folders" validate:"dive,required"`
	IgnoreFiles         []string `mapstructure:"ignore_files" validate:"dive,required"`
	EssentialFiles      []string `mapstructure:"essential_files" validate:"dive,required"`
	SimilarityThreshold float64  `mapstructure:"similarity_threshold" validate:"gte=-1,lte=1"`
	TopK                int      `mapstructure:"top_k" validate:"gte=1"`
	MaxTokens           int      `mapstructure:"max_tokens" validate:"gte=1"`
	HistoryMax          int      `mapstructure:"history_max" validate:"gte=1"`
	FilterContent       bool     `mapstructure:"filter_content"`
	UseQuestionHistory  bool     `mapstructure:"use_question_history"`
	UseTranslator       bool     `mapstructure:"use_translator"`
	ReplyLanguage       string   `mapstructure:"reply_language"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Extensions: []string{
			".md", ".vue", ".js", ".json", ".css", ".html", ".py", ".pdf", ".java", ".ts",
			".jsx", ".tsx", ".php", ".c", ".cpp", ".h", ".cs", ".swift", ".rb", ".go", ".kt",
			".sql", ".hpp", ".m", ".mm",
		},
		IgnoreFolders: []string{
			"node_modules", "cypress", ".gradle", ".idea", "build", "test", "bin", "dist",
			".vscode", ".git", ".github", ".expo",
		},
		IgnoreFiles:         []string{"sage.yaml", "embeddings.jsonl", "package-lock.json", "go.sum"},
		EssentialFiles:      []string{"README.md", "package.json", "src/router/index.js"},
		SimilarityThreshold: 0.30,
		TopK:                100,
		MaxTokens:           80000,
		HistoryMax:          100,
		UseQuestionHistory:  true,
	}
}

var validate = validator.New()

// Validate reports the first invalid field wrapped in ErrValidation.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrValidation, settingName(fe.StructField()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	c := s
	c.Extensions = append([]string(nil), s.Extensions...)
	c.IgnoreFolders = append([]string(nil), s.IgnoreFolders...)
	c.IgnoreFiles = append([]string(nil), s.IgnoreFiles...)
	c.EssentialFiles = append([]string(nil), s.EssentialFiles...)
	return c
}

func (s Settings) normalized() Settings {
	c := s.Clone()
	c.Extensions = cleanList(c.Extensions)
	c.IgnoreFolders = cleanList(c.IgnoreFolders)
	c.IgnoreFiles = cleanList(c.IgnoreFiles)
	c.EssentialFiles = cleanList(c.EssentialFiles)
	c.ReplyLanguage = strings.TrimSpace(c.ReplyLanguage)
	return c
}

// cleanList trims entries, splits any that still hold commas and drops blanks.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

type settingKind int

const (
	kindList settingKind = iota
	kindInt
	kindFloat
	kindBool
	kindString
)

var settingKinds = map[string]settingKind{
	"extensions":           kindList,
	"ignore_folders":       kindList,
	"ignore_files":         kindList,
	"essential_files":      kindList,
	"similarity_threshold": kindFloat,
	"top_k":                kindInt,
	"max_tokens":           kindInt,
	"history_max":          kindInt,
	"filter_content":       kindBool,
	"use_question_history": kindBool,
	"use_translator":       kindBool,
	"reply_language":       kindString,
}

// SettingKeys lists the names accepted by UpdateSettings, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func settingName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseSetting(key, raw string) (any, error) {
	kind, ok := settingKinds[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown setting %q", ErrValidation, key)
	}
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindList:
		return cleanList([]string{raw}), nil
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrValidation, key)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", ErrValidation, key)
		}
		return f, nil
	case kindBool:
		switch strings.ToLower(raw) {
		case "on", "yes":
			return true, nil
		case "off", "no":
			return false, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false", ErrValidation, key)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// UpdateSettings applies updates (setting name to raw value, lists given
// comma-separated) to the settings stored at path, validates the result and
// writes the file back. Nothing is written when any update is invalid.
func UpdateSettings(path string, updates map[string]string) (Settings, error) {
	if path == "" {
		path = DefaultFile
	}
	v := newViper(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("reading config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("reading config: %w", err)
	}

	for key, raw := range updates {
		val, err := parseSetting(key, raw)
		if err != nil {
			return Settings{}, err
		}
		v.Set("settings."+key, val)
	}

	var s Settings
	if err := v.UnmarshalKey("settings", &s); err != nil {
		return Settings{}, fmt.Errorf("unmarshalling settings: %w", err)
	}
	s = s.normalized()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	if err := v.WriteConfigAs(path); err != nil {
		return Settings{}, fmt.Errorf("writing config: %w", err)
	}
	return s, nil
}

// Fields renders settings as ordered name/value pairs for display.
func (s Settings) Fields() [][2]string {
	return [][2]string{
		{"extensions", strings.Join(s.Extensions, ", ")},
		{"ignore_folders", strings.Join(s.IgnoreFolders, ", ")},
		{"ignore_files", strings.Join(s.IgnoreFiles, ", ")},
		{"essential_files", strings.Join(s.EssentialFiles, ", ")},
		{"similarity_threshold", strconv.FormatFloat(s.SimilarityThreshold, 'f', -1, 64)},
		{"top_k", strconv.Itoa(s.TopK)},
		{"max_tokens", strconv.Itoa(s.MaxTokens)},
		{"history_max", strconv.Itoa(s.HistoryMax)},
		{"filter_content", strconv.FormatBool(s.FilterContent)},
		{"use_question_history", strconv.FormatBool(s.UseQuestionHistory)},
		{"use_translator", strconv.FormatBool(s.UseTranslator)},
		{"reply_language", s.ReplyLanguage},
	}
}
