// Package graph records which files each answered question drew on, so the
// questions citing a file can be found later.
package graph

import (
	"context"
	"time"
)

// CitedFile is a file of an indexed folder.
type CitedFile struct {
	Folder   string
	Filename string
}

// Citation links one answered question to the files placed in its context.
type Citation struct {
	QuestionID uint64
	Title      string
	AskedAt    time.Time
	Files      []CitedFile
}

// CitingQuestion is a question that cited a file.
type CitingQuestion struct {
	ID      uint64
	Title   string
	AskedAt time.Time
}

// Repository provides citation graph storage.
type Repository interface {
	// RecordCitations stores the question node and one edge per cited file.
	RecordCitations(ctx context.Context, c Citation) error
	// QuestionsCiting returns the questions that cited a file, newest first.
	QuestionsCiting(ctx context.Context, file CitedFile) ([]CitingQuestion, error)
	// ForgetQuestions removes questions and their edges.
	ForgetQuestions(ctx context.Context, ids []uint64) error
	// Close releases resources.
	Close(ctx context.Context) error
}
