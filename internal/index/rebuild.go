package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileError records a file that could not be read or embedded during a rebuild.
type FileError struct {
	Filename string
	Err      error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// RebuildResult summarizes one rebuild of a folder store.
type RebuildResult struct {
	Folder   string        `json:"folder"`
	Written  int           `json:"written"`
	Reused   int           `json:"reused"`
	Embedded int           `json:"embedded"`
	Deleted  []string      `json:"deleted,omitempty"`
	Errors   []FileError   `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Summary renders the result as a single human-readable line.
func (r *RebuildResult) Summary() string {
	return fmt.Sprintf("%s: %d written (%d reused, %d embedded), %d removed, %d failed in %s",
		r.Folder, r.Written, r.Reused, r.Embedded, len(r.Deleted), len(r.Errors),
		r.Duration.Round(time.Millisecond))
}

// Rebuilder regenerates a folder's store from its current file list.
type Rebuilder struct {
	Embed EmbedFunc
	Read  ReadFunc
	// Transform, when set, rewrites newly read content before embedding.
	// The content hash is always taken over the untransformed text.
	Transform TransformFunc
	Logger    *zap.Logger
}

// NewRebuilder creates a rebuilder that embeds with embed and reads with read.
func NewRebuilder(embed EmbedFunc, read ReadFunc, logger *zap.Logger) *Rebuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rebuilder{Embed: embed, Read: read, Logger: logger}
}

// Rebuild truncates the folder's store and writes one record per file in
// files, in order. Files are identified relative to folder using forward
// slashes. A record from existing is reused verbatim when its hash matches
// the file's current content; otherwise the file is embedded again.
// Per-file failures are collected and never abort the rebuild.
func (b *Rebuilder) Rebuild(ctx context.Context, folder string, existing map[string]*Record, files []string) (*RebuildResult, error) {
	start := time.Now()
	logger := b.logger().With(zap.String("folder", folder))
	result := &RebuildResult{Folder: folder}

	w, err := createStore(StorePath(folder))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			w.close()
			return nil, err
		}
		seen[name] = struct{}{}

		content, err := b.Read(filepath.Join(folder, filepath.FromSlash(name)))
		if err != nil {
			logger.Warn("read failed", zap.String("file", name), zap.Error(err))
			result.Errors = append(result.Errors, FileError{Filename: name, Err: err})
			continue
		}
		hash := ContentHash(content)

		rec, ok := existing[name]
		if ok && rec.ContentHash == hash && len(rec.Embedding) > 0 {
			result.Reused++
		} else {
			if b.Transform != nil {
				content = b.Transform(ctx, content)
			}
			vec, err := b.Embed(ctx, content)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					w.close()
					return nil, ctxErr
				}
				logger.Warn("embedding failed", zap.String("file", name), zap.Error(err))
				result.Errors = append(result.Errors, FileError{Filename: name, Err: err})
				continue
			}
			rec = &Record{Filename: name, Content: content, ContentHash: hash, Embedding: vec}
			result.Embedded++
			logger.Debug("embedded", zap.String("file", name), zap.Int("dims", len(vec)))
		}

		if err := w.write(rec); err != nil {
			w.close()
			return nil, fmt.Errorf("write record %s: %w", name, err)
		}
		result.Written++
	}

	if err := w.close(); err != nil {
		return nil, fmt.Errorf("close store: %w", err)
	}

	for name := range existing {
		if _, ok := seen[name]; !ok {
			result.Deleted = append(result.Deleted, name)
		}
	}
	sort.Strings(result.Deleted)
	result.Duration = time.Since(start)

	logger.Info("store rebuilt",
		zap.Int("written", result.Written),
		zap.Int("reused", result.Reused),
		zap.Int("embedded", result.Embedded),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("failed", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (b *Rebuilder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// FailedFiles lists the filenames that errored, joined for display.
func (r *RebuildResult) FailedFiles() string {
	names := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		names[i] = e.Filename
	}
	return strings.Join(names, ", ")
}
