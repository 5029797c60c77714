// Package history persists answered questions in bbolt with monotonically
// increasing ids and a bounded size, and retrieves past answers relevant to
// a new query.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/codesage/sage/internal/index"
	"github.com/codesage/sage/internal/retrieval"
	"github.com/codesage/sage/internal/storage"
)

var (
	bucketQuestions = []byte("questions")
	bucketMeta      = []byte("questions_meta")
	keyCount        = []byte("count")
)

// ErrNotFound is returned when no question has the requested id.
var ErrNotFound = errors.New("question not found")

// DefaultMaxRecords bounds the history when no limit is configured.
const DefaultMaxRecords = 100

// Record is one answered question.
type Record struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	CreatedAt   time.Time `json:"created_at"`
}

// InsertResult reports the outcome of Insert. EmbedErr is set when the record
// was stored without an embedding; such records are never retrieved by
// QueryRelevant.
type InsertResult struct {
	ID       uint64
	Evicted  []uint64
	EmbedErr error
}

// Options configures a Store.
type Options struct {
	// MaxRecords is the number of records kept; the oldest are evicted first.
	MaxRecords int
	Embed      index.EmbedFunc
	Counter    retrieval.TokenCounter
	Logger     *zap.Logger
}

// Store is the question history.
type Store struct {
	db      *bbolt.DB
	max     int
	embed   index.EmbedFunc
	counter retrieval.TokenCounter
	logger  *zap.Logger
}

// New prepares the history buckets in db. The tracked record count is
// reconciled with the bucket contents on every open.
func New(db *bbolt.DB, opts Options) (*Store, error) {
	s := &Store{
		db:      db,
		max:     opts.MaxRecords,
		embed:   opts.Embed,
		counter: opts.Counter,
		logger:  opts.Logger,
	}
	if s.max <= 0 {
		s.max = DefaultMaxRecords
	}
	if s.counter == nil {
		s.counter = retrieval.EstimateCounter{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketQuestions)
		if err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		var n uint64
		if err := b.ForEach(func(_, _ []byte) error { n++; return nil }); err != nil {
			return err
		}
		return meta.Put(keyCount, storage.Itob(n))
	})
	if err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}
	return s, nil
}

// Insert stores a new question and answer under a fresh id and evicts the
// oldest records beyond the configured maximum. Failing to embed does not
// prevent the insert.
func (s *Store) Insert(ctx context.Context, question, answer string) (*InsertResult, error) {
	rec := &Record{
		Title:       Title(question),
		Question:    question,
		Answer:      answer,
		ContentHash: index.ContentHash(question + answer),
		CreatedAt:   time.Now().UTC(),
	}
	res := &InsertResult{}
	if s.embed != nil {
		vec, err := s.embed(ctx, question+"\n"+answer)
		if err != nil {
			res.EmbedErr = err
			s.logger.Warn("storing question without embedding", zap.Error(err))
		} else {
			rec.Embedding = vec
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketQuestions)
		meta := tx.Bucket(bucketMeta)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rec.ID = id
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(storage.Itob(id), data); err != nil {
			return err
		}

		count := storage.Btoi(meta.Get(keyCount)) + 1
		for count > uint64(s.max) {
			c := b.Cursor()
			k, _ := c.First()
			if k == nil {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
			res.Evicted = append(res.Evicted, storage.Btoi(k))
			count--
		}
		return meta.Put(keyCount, storage.Itob(count))
	})
	if err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	res.ID = rec.ID
	if len(res.Evicted) > 0 {
		s.logger.Debug("evicted old questions", zap.Uint64s("ids", res.Evicted))
	}
	return res, nil
}

// Get returns the record with id.
func (s *Store) Get(id uint64) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketQuestions).Get(storage.Itob(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record with id and reports whether it existed.
func (s *Store) Delete(id uint64) (bool, error) {
	var found bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketQuestions)
		key := storage.Itob(id)
		if b.Get(key) == nil {
			return nil
		}
		found = true
		if err := b.Delete(key); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		count := storage.Btoi(meta.Get(keyCount))
		if count > 0 {
			count--
		}
		return meta.Put(keyCount, storage.Itob(count))
	})
	if err != nil {
		return false, fmt.Errorf("delete question %d: %w", id, err)
	}
	return found, nil
}

// MaxRecords is the number of records kept before the oldest are evicted.
func (s *Store) MaxRecords() int { return s.max }

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = storage.Btoi(tx.Bucket(bucketMeta).Get(keyCount))
		return nil
	})
	return int(n), err
}

// List returns all records ordered by id, newest first when reverse is set.
func (s *Store) List(reverse bool) ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketQuestions).Cursor()
		next := c.Next
		k, v := c.First()
		if reverse {
			next = c.Prev
			k, v = c.Last()
		}
		for ; k != nil; k, v = next() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode question %d: %w", storage.Btoi(k), err)
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryRelevant returns past answers whose embedding reaches threshold
// against query, most similar first and packed into maxTokens. Records
// stored without an embedding are never returned.
func (s *Store) QueryRelevant(query []float32, threshold float64, maxTokens int) ([]*retrieval.AnswerCandidate, error) {
	records, err := s.List(false)
	if err != nil {
		return nil, err
	}

	var cands []retrieval.Candidate
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		sim := retrieval.Cosine(query, rec.Embedding)
		if sim < threshold {
			continue
		}
		cands = append(cands, &retrieval.AnswerCandidate{
			ID:         rec.ID,
			Title:      rec.Title,
			Answer:     rec.Answer,
			Score:      sim,
			TokenCount: s.counter.Count(rec.Title + rec.Answer),
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Similarity() > cands[j].Similarity()
	})

	return retrieval.Select(cands, maxTokens, 0, nil).Answers(), nil
}
