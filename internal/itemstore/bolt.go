package itemstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"asset-tiles/internal/logging"
	"asset-tiles/internal/metrics"
)

// itemsBucket holds one JSON record per item path.
const itemsBucket = "Items"

// BoltStore persists item records in a single-file bbolt database. It is
// the zero-dependency alternative to SQLiteStore for embedding into desktop
// deployments that cannot carry cgo.
type BoltStore struct {
	db *bolt.DB
}

type boltRecord struct {
	Rating    int    `json:"rating"`
	ColorTag  string `json:"colorTag,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// NewBolt opens (creating if necessary) the item database at dbPath.
func NewBolt(dbPath string) (*BoltStore, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open item database %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(itemsBucket))
		return err
	})
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close item database after bucket failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to create bucket %s: %w", itemsBucket, err)
	}

	logging.Info("Item database ready at %s", dbPath)
	return &BoltStore{db: db}, nil
}

// Item returns the record for path; missing records yield a zero Record.
func (s *BoltStore) Item(ctx context.Context, path string) (Record, error) {
	done := metrics.ObserveStoreQuery("get_item")

	rec := Record{Path: path}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(itemsBucket)).Get([]byte(path))
		if data == nil {
			return nil
		}
		var raw boltRecord
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode record for %s: %w", path, err)
		}
		rec.Rating = raw.Rating
		rec.ColorTag = raw.ColorTag
		rec.UpdatedAt = time.Unix(raw.UpdatedAt, 0)
		return nil
	})
	done(err)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// SetRating stores a clamped rating for path.
func (s *BoltStore) SetRating(ctx context.Context, path string, rating int) error {
	done := metrics.ObserveStoreQuery("set_rating")
	err := s.upsert(path, func(rec *Record) {
		rec.Rating = ClampRating(rating)
	})
	done(err)
	return err
}

// SetColorTag stores a color tag for path.
func (s *BoltStore) SetColorTag(ctx context.Context, path, tag string) error {
	done := metrics.ObserveStoreQuery("set_color")
	err := s.upsert(path, func(rec *Record) {
		rec.ColorTag = tag
	})
	done(err)
	return err
}

func (s *BoltStore) upsert(path string, mutate func(*Record)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucket))

		rec := Record{Path: path}
		if data := bucket.Get([]byte(path)); data != nil {
			var raw boltRecord
			if err := json.Unmarshal(data, &raw); err != nil {
				// A corrupt entry is replaced, not fatal.
				logging.Warn("replacing corrupt record for %s: %v", path, err)
			} else {
				rec.Rating = raw.Rating
				rec.ColorTag = raw.ColorTag
			}
		}

		mutate(&rec)

		if rec.IsZero() {
			return bucket.Delete([]byte(path))
		}

		data, err := json.Marshal(boltRecord{
			Rating:    rec.Rating,
			ColorTag:  rec.ColorTag,
			UpdatedAt: time.Now().Unix(),
		})
		if err != nil {
			return err
		}
		return bucket.Put([]byte(path), data)
	})
}

// ListByMinRating returns records with Rating >= min, ordered by path.
func (s *BoltStore) ListByMinRating(ctx context.Context, min int) ([]Record, error) {
	done := metrics.ObserveStoreQuery("list_by_rating")
	recs, err := s.scan(func(rec Record) bool { return rec.Rating >= min })
	done(err)
	return recs, err
}

// ListByColorTag returns records carrying tag, ordered by path.
func (s *BoltStore) ListByColorTag(ctx context.Context, tag string) ([]Record, error) {
	done := metrics.ObserveStoreQuery("list_by_color")
	recs, err := s.scan(func(rec Record) bool { return rec.ColorTag == tag })
	done(err)
	return recs, err
}

func (s *BoltStore) scan(keep func(Record) bool) ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(itemsBucket)).ForEach(func(k, v []byte) error {
			var raw boltRecord
			if err := json.Unmarshal(v, &raw); err != nil {
				logging.Warn("skipping corrupt record for %s: %v", string(k), err)
				return nil
			}
			rec := Record{
				Path:      string(k),
				Rating:    raw.Rating,
				ColorTag:  raw.ColorTag,
				UpdatedAt: time.Unix(raw.UpdatedAt, 0),
			}
			if keep(rec) {
				recs = append(recs, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Path < recs[j].Path })
	return recs, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
