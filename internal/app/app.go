// Package app wires configuration into a ready Assistant for the sage
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/codesage/sage/internal/assistant"
	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/folders"
	"github.com/codesage/sage/internal/graph"
	neo4jgraph "github.com/codesage/sage/internal/graph/neo4j"
	"github.com/codesage/sage/internal/history"
	"github.com/codesage/sage/internal/llm"
	"github.com/codesage/sage/internal/logging"
	"github.com/codesage/sage/internal/observability"
	"github.com/codesage/sage/internal/retrieval"
	"github.com/codesage/sage/internal/storage"
	"github.com/codesage/sage/internal/translate"
	"github.com/codesage/sage/internal/vector"
	"github.com/codesage/sage/internal/vector/qdrant"
)

// App is an opened sage installation.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Factory   *llm.ProviderFactory
	Providers *Providers
	History   *history.Store
	Folders   *folders.Registry
	Assistant *assistant.Assistant

	db         *bbolt.DB
	tracer     *observability.TracerProvider
	mirror     *vector.Mirror
	citations  graph.Repository
	translator *translate.Translator
}

// Open loads the configuration at path and builds the App. Optional
// backends (vector mirror, citation graph, tracing) are enabled when
// configured; a citation graph that cannot be reached is logged and skipped.
func Open(ctx context.Context, path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Validate() {
		logger.Warn("config", zap.String("warning", w))
	}

	factory := llm.NewFactory()
	RegisterProviders(factory)
	return New(ctx, cfg, factory, logger)
}

// New builds the App from an already loaded configuration.
func New(ctx context.Context, cfg *config.Config, factory *llm.ProviderFactory, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Factory: factory}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	tracer, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Environment:    "local",
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.tracer = tracer

	if a.Providers, err = BuildProviders(factory, cfg.LLM); err != nil {
		return nil, err
	}

	if a.db, err = storage.Open(cfg.Storage.DBPath()); err != nil {
		return nil, err
	}

	counter := tokenCounter(cfg.LLM.TokenModel, logger)
	embed := llm.Embedder(a.Providers.Embedder)
	if a.History, err = history.New(a.db, history.Options{
		MaxRecords: cfg.Settings.HistoryMax,
		Embed:      embed,
		Counter:    counter,
		Logger:     logger.Named("history"),
	}); err != nil {
		return nil, err
	}
	if a.Folders, err = folders.NewRegistry(a.db); err != nil {
		return nil, err
	}

	if cfg.Vector.Host != "" {
		repo, err := qdrant.New(cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
		if err != nil {
			return nil, fmt.Errorf("vector mirror: %w", err)
		}
		a.mirror = vector.NewMirror(repo, logger.Named("vector"))
	}
	if cfg.Graph.URI != "" {
		repo, err := neo4jgraph.New(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
		if err != nil {
			logger.Warn("citation graph unavailable", zap.Error(err))
		} else {
			a.citations = repo
		}
	}

	if a.Providers.Translator != nil {
		a.translator = translate.New(a.Providers.Translator, logger.Named("translate"))
	}

	var chatOpts *llm.RequestOptions
	if cfg.LLM.MaxTokens > 0 {
		chatOpts = &llm.RequestOptions{
			MaxTokens:   llm.Int(cfg.LLM.MaxTokens),
			Temperature: llm.Float(cfg.LLM.Temperature),
		}
	}

	a.Assistant, err = assistant.New(assistant.Deps{
		Chat:        a.Providers.Chat,
		Embedder:    a.Providers.Embedder,
		Filter:      a.Providers.Filter,
		ChatOptions: chatOpts,
		History:     a.History,
		Folders:     a.Folders,
		Counter:     counter,
		Translator:  a.translator,
		Mirror:      a.mirror,
		Citations:   a.citations,
		Logger:      logger.Named("assistant"),
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

// Settings returns the current retrieval settings.
func (a *App) Settings() config.Settings {
	return a.Config.Settings.Clone()
}

// Translator returns the line translator, or an error when the translator
// role is disabled.
func (a *App) Translator() (*translate.Translator, error) {
	if a.translator == nil {
		return nil, errors.New("no translator provider configured")
	}
	return a.translator, nil
}

// CheckDatabase verifies the bbolt database can be read.
func (a *App) CheckDatabase(context.Context) error {
	if a.db == nil {
		return errors.New("database not open")
	}
	return a.db.View(func(*bbolt.Tx) error { return nil })
}

// Close releases every backend. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if a.citations != nil {
		errs = append(errs, a.citations.Close(ctx))
	}
	if a.mirror != nil {
		errs = append(errs, a.mirror.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}

// NewLogger builds the logger described by the log section.
func NewLogger(c config.LogConfig) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	})
}

// tokenCounter prefers the tiktoken encoding for model and falls back to
// the length estimate when it cannot be loaded.
func tokenCounter(model string, logger *zap.Logger) retrieval.TokenCounter {
	c, err := retrieval.NewTiktokenCounter(model)
	if err != nil {
		logger.Warn("tokenizer unavailable, estimating token counts", zap.String("model", model), zap.Error(err))
		return retrieval.EstimateCounter{}
	}
	return c
}

// Version is reported by the CLI and attached to traces.
var Version = "0.1.0"
