package vector

import "context"

// Document is one indexed file mirrored into a vector database.
type Document struct {
	ID          string
	Folder      string
	Filename    string
	ContentHash string
	Vector      []float32
}

// SearchResult is a single match from a similarity search.
type SearchResult struct {
	ID          string
	Folder      string
	Filename    string
	ContentHash string
	Score       float32
}

// Repository provides vector storage and similarity search.
type Repository interface {
	// Upsert inserts or updates documents.
	Upsert(ctx context.Context, docs []Document) error
	// Search finds the top-k most similar documents of one folder.
	Search(ctx context.Context, vector []float32, topK int, folder string) ([]SearchResult, error)
	// DeleteFolder removes every document of folder.
	DeleteFolder(ctx context.Context, folder string) error
	// Close releases resources.
	Close() error
}
