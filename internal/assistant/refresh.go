package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/codesage/sage/internal/config"
	"github.com/codesage/sage/internal/index"
	"github.com/codesage/sage/internal/observability"
	"github.com/codesage/sage/internal/source"
)

// Refresh rebuilds the store of each folder in turn. With no folders given
// the selected folders are refreshed. It stops at the first folder that
// cannot be rebuilt; per-file failures are reported in each result.
func (a *Assistant) Refresh(ctx context.Context, s config.Settings, folders []string) ([]*index.RebuildResult, error) {
	if len(folders) == 0 {
		var err error
		if folders, err = a.folders.Selected(); err != nil {
			return nil, err
		}
	}

	results := make([]*index.RebuildResult, 0, len(folders))
	for _, folder := range folders {
		res, err := a.RefreshFolder(ctx, s, folder)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RefreshFolder discovers the files of folder and rebuilds its store,
// reusing embeddings of unchanged files. An unreadable previous store is
// discarded and every file is embedded again.
func (a *Assistant) RefreshFolder(ctx context.Context, s config.Settings, folder string) (*index.RebuildResult, error) {
	logger := a.logger.With(zap.String("folder", folder))

	files, err := index.Discover(folder, FileFilter(s))
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", folder, err)
	}

	ctx, span := observability.StartRebuildSpan(ctx, folder, len(files))
	defer span.End()

	path := index.StorePath(folder)
	existing, err := index.Load(path)
	if err != nil {
		logger.Warn("discarding unreadable store", zap.Error(err))
		existing = map[string]*index.Record{}
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return a.embed(ctx, "file", text)
	}
	rb := index.NewRebuilder(embed, source.Read, logger)
	if s.UseTranslator && a.translator != nil {
		rb.Transform = a.translator.Lines
	}

	res, err := rb.Rebuild(ctx, folder, existing, files)
	a.stores.Invalidate(path)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	observability.RecordRebuildResult(span, res.Written, res.Reused, res.Embedded, len(res.Errors))

	if a.mirror != nil {
		a.syncMirror(ctx, folder, path)
	}
	return res, nil
}

func (a *Assistant) syncMirror(ctx context.Context, folder, path string) {
	records, err := a.stores.Load(path)
	if err == nil {
		_, err = a.mirror.Sync(ctx, folder, records)
	}
	if err != nil {
		a.logger.Warn("vector mirror sync failed", zap.String("folder", folder), zap.Error(err))
	}
}
