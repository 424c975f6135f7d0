package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
)

var pointPrefix = []byte("pt:")

// BadgerIndex is a local, embedded vector index backed by Badger. Points are
// stored as JSON values; search is an exhaustive cosine scan, which is the
// right trade for the corpus sizes a single assistant accumulates.
type BadgerIndex struct {
	db *badger.DB
}

// OpenBadger opens an index at path. An empty path opens an in-memory index,
// which tests use.
func OpenBadger(path string) (*BadgerIndex, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}
	return &BadgerIndex{db: db}, nil
}

func (b *BadgerIndex) Close() error {
	return b.db.Close()
}

func pointKey(id string) []byte {
	return append(append([]byte{}, pointPrefix...), id...)
}

// Upsert stores points, replacing any existing point with the same id.
func (b *BadgerIndex) Upsert(ctx context.Context, points []*Point) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, p := range points {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(p.Vector) == 0 {
				return fmt.Errorf("point %s: %w", p.ID, ErrInvalidVector)
			}
			val, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to encode point %s: %w", p.ID, err)
			}
			if err := txn.Set(pointKey(p.ID), val); err != nil {
				return fmt.Errorf("failed to store point %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// Search scans every stored point and returns the top matches by cosine
// similarity, dropping scores below scoreThreshold.
func (b *BadgerIndex) Search(ctx context.Context, query []float32, limit int, scoreThreshold float64) ([]*ScoredPoint, error) {
	if len(query) == 0 {
		return nil, ErrInvalidVector
	}
	if limit <= 0 {
		return nil, nil
	}

	var hits []*ScoredPoint
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = pointPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				var p Point
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("failed to decode point: %w", err)
				}
				score := Cosine(query, p.Vector)
				if score >= scoreThreshold {
					hits = append(hits, &ScoredPoint{Point: p, Score: score})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

var _ Client = (*BadgerIndex)(nil)
