// Package vector mirrors folder stores into a vector database for remote
// similarity search.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codesage/sage/internal/index"
)

// namespace seeds deterministic point ids.
var namespace = uuid.MustParse("6f1c2a4e-3b7d-5e8f-9a0b-1c2d3e4f5a6b")

const upsertBatch = 64

// PointID returns the stable id of a file within a folder.
func PointID(folder, filename string) string {
	return uuid.NewSHA1(namespace, []byte(folder+"\x00"+filename)).String()
}

// Mirror copies folder stores into a Repository.
type Mirror struct {
	repo   Repository
	logger *zap.Logger
}

// NewMirror creates a Mirror.
func NewMirror(repo Repository, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{repo: repo, logger: logger}
}

// Sync replaces the mirrored documents of folder with records. Records
// without an embedding are skipped. It returns the number of documents
// written.
func (m *Mirror) Sync(ctx context.Context, folder string, records map[string]*index.Record) (int, error) {
	if err := m.repo.DeleteFolder(ctx, folder); err != nil {
		return 0, fmt.Errorf("clear %s: %w", folder, err)
	}

	names := make([]string, 0, len(records))
	for name, rec := range records {
		if len(rec.Embedding) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	written := 0
	for start := 0; start < len(names); start += upsertBatch {
		end := min(start+upsertBatch, len(names))
		docs := make([]Document, 0, end-start)
		for _, name := range names[start:end] {
			rec := records[name]
			docs = append(docs, Document{
				ID:          PointID(folder, name),
				Folder:      folder,
				Filename:    name,
				ContentHash: rec.ContentHash,
				Vector:      rec.Embedding,
			})
		}
		if err := m.repo.Upsert(ctx, docs); err != nil {
			return written, fmt.Errorf("upsert %s: %w", folder, err)
		}
		written += len(docs)
	}

	m.logger.Debug("mirrored folder", zap.String("folder", folder), zap.Int("documents", written))
	return written, nil
}

// Search queries every folder and merges the matches, best first, keeping at
// most topK.
func (m *Mirror) Search(ctx context.Context, vec []float32, topK int, folders []string) ([]SearchResult, error) {
	var all []SearchResult
	for _, folder := range folders {
		res, err := m.repo.Search(ctx, vec, topK, folder)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", folder, err)
		}
		all = append(all, res...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].Filename < all[j].Filename
	})
	if topK >= 0 && len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

// Close closes the underlying repository.
func (m *Mirror) Close() error {
	return m.repo.Close()
}
