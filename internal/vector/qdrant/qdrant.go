// Package qdrant implements vector.Repository on a Qdrant gRPC endpoint.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/codesage/sage/internal/vector"
)

const (
	fieldFolder   = "folder"
	fieldFilename = "filename"
	fieldHash     = "content_hash"
)

// Repository implements vector.Repository using Qdrant. The collection is
// created on first upsert, sized to the first vector seen.
type Repository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string

	mu    sync.Mutex
	ready bool
}

// New connects to Qdrant at host:port.
func New(host string, port int, collection string) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return newRepository(conn, collection), nil
}

func newRepository(conn *grpc.ClientConn, collection string) *Repository {
	return &Repository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}
}

func (r *Repository) ensureCollection(ctx context.Context, size int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		return nil
	}

	resp, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return fmt.Errorf("check collection %s: %w", r.collection, err)
	}
	if !resp.GetResult().GetExists() {
		_, err := r.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: r.collection,
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(size), Distance: pb.Distance_Cosine},
			}},
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", r.collection, err)
		}
	}
	r.ready = true
	return nil
}

func (r *Repository) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := r.ensureCollection(ctx, len(docs[0].Vector)); err != nil {
		return err
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         toPoints(docs),
	})
	return err
}

func toPoints(docs []vector.Document) []*pb.PointStruct {
	points := make([]*pb.PointStruct, len(docs))
	for i, d := range docs {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: d.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}}},
			Payload: map[string]*pb.Value{
				fieldFolder:   stringValue(d.Folder),
				fieldFilename: stringValue(d.Filename),
				fieldHash:     stringValue(d.ContentHash),
			},
		}
	}
	return points
}

func (r *Repository) Search(ctx context.Context, vec []float32, topK int, folder string) ([]vector.SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vec,
		Filter:         folderFilter(folder),
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	results := make([]vector.SearchResult, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = vector.SearchResult{
			ID:          pt.Id.GetUuid(),
			Folder:      pt.Payload[fieldFolder].GetStringValue(),
			Filename:    pt.Payload[fieldFilename].GetStringValue(),
			ContentHash: pt.Payload[fieldHash].GetStringValue(),
			Score:       pt.Score,
		}
	}
	return results, nil
}

func (r *Repository) DeleteFolder(ctx context.Context, folder string) error {
	resp, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return fmt.Errorf("check collection %s: %w", r.collection, err)
	}
	if !resp.GetResult().GetExists() {
		return nil
	}

	wait := true
	_, err = r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{
			Filter: folderFilter(folder),
		}},
	})
	return err
}

func (r *Repository) Close() error {
	return r.conn.Close()
}

func folderFilter(folder string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{{
		ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   fieldFolder,
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: folder}},
		}},
	}}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

var _ vector.Repository = (*Repository)(nil)
