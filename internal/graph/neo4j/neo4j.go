package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/codesage/sage/internal/graph"
)

const (
	cypherRecord = "MERGE (q:Question {id: $id}) SET q.title = $title, q.asked_at = $asked_at " +
		"WITH q UNWIND $files AS f " +
		"MERGE (d:File {folder: f.folder, filename: f.filename}) " +
		"MERGE (q)-[:CITES]->(d)"
	cypherCiting = "MATCH (q:Question)-[:CITES]->(:File {folder: $folder, filename: $filename}) " +
		"RETURN q.id AS id, q.title AS title, q.asked_at AS asked_at ORDER BY q.id DESC"
	cypherForget = "MATCH (q:Question) WHERE q.id IN $ids DETACH DELETE q"
)

// Repository implements graph.Repository using Neo4j.
type Repository struct {
	driver neo4j.DriverWithContext
}

// New creates a Neo4j-backed repository and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Repository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Repository{driver: driver}, nil
}

// recordParams converts a citation to query parameters. Neo4j integers are
// signed, so ids are stored as int64.
func recordParams(c graph.Citation) map[string]any {
	files := make([]any, len(c.Files))
	for i, f := range c.Files {
		files[i] = map[string]any{"folder": f.Folder, "filename": f.Filename}
	}
	return map[string]any{
		"id":       int64(c.QuestionID),
		"title":    c.Title,
		"asked_at": c.AskedAt.UTC().Format(time.RFC3339),
		"files":    files,
	}
}

func (r *Repository) RecordCitations(ctx context.Context, c graph.Citation) error {
	if len(c.Files) == 0 {
		return nil
	}
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, cypherRecord, recordParams(c))
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("record citations for question %d: %w", c.QuestionID, err)
	}
	return nil
}

func (r *Repository) QuestionsCiting(ctx context.Context, file graph.CitedFile) ([]graph.CitingQuestion, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, cypherCiting,
			map[string]any{"folder": file.Folder, "filename": file.Filename})
		if err != nil {
			return nil, err
		}
		var out []graph.CitingQuestion
		for records.Next(ctx) {
			out = append(out, toCitingQuestion(records.Record()))
		}
		return out, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("questions citing %s: %w", file.Filename, err)
	}
	return result.([]graph.CitingQuestion), nil
}

func toCitingQuestion(rec *neo4j.Record) graph.CitingQuestion {
	id, _, _ := neo4j.GetRecordValue[int64](rec, "id")
	title, _, _ := neo4j.GetRecordValue[string](rec, "title")
	askedAt, _, _ := neo4j.GetRecordValue[string](rec, "asked_at")
	q := graph.CitingQuestion{ID: uint64(id), Title: title}
	if t, err := time.Parse(time.RFC3339, askedAt); err == nil {
		q.AskedAt = t
	}
	return q
}

func (r *Repository) ForgetQuestions(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	params := make([]any, len(ids))
	for i, id := range ids {
		params[i] = int64(id)
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, cypherForget, map[string]any{"ids": params})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("forget questions: %w", err)
	}
	return nil
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Repository = (*Repository)(nil)
