// Package index maintains the per-folder embedding store: one JSONL file of
// file records, rebuilt incrementally by reusing embeddings whose content
// hash has not changed.
package index

import (
	"context"
	"path/filepath"
)

// StoreFileName is the name of the embedding store inside an indexed folder.
const StoreFileName = "embeddings.jsonl"

// Record is one indexed file. Filename is relative to the folder root and
// always uses forward slashes.
type Record struct {
	Filename    string    `json:"filename"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
}

// EmbedFunc turns text into a vector.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ReadFunc returns the decoded text of the file at path.
type ReadFunc func(path string) (string, error)

// TransformFunc rewrites decoded content before it is embedded and stored.
type TransformFunc func(ctx context.Context, content string) string

// StorePath returns the embedding store location for folder.
func StorePath(folder string) string {
	return filepath.Join(folder, StoreFileName)
}
