package itemstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-tiles/internal/logging"
	"asset-tiles/internal/metrics"
)

// SQLiteStore persists item records in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (creating if necessary) the item database at dbPath. The
// parent directory must already exist and be writable.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// WAL keeps readers unblocked during write-through bursts;
	// busy_timeout prevents "database is locked" under concurrent tiles.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open item database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close item database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to item database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close item database after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize item schema: %w", err)
	}

	logging.Info("Item database ready at %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		path TEXT PRIMARY KEY,
		rating INTEGER NOT NULL DEFAULT 0,
		color_tag TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_items_rating ON items(rating);
	CREATE INDEX IF NOT EXISTS idx_items_color ON items(color_tag);
	`
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Item returns the record for path; missing records yield a zero Record.
func (s *SQLiteStore) Item(ctx context.Context, path string) (Record, error) {
	done := metrics.ObserveStoreQuery("get_item")

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec := Record{Path: path}
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT rating, color_tag, updated_at FROM items WHERE path = ?", path,
	).Scan(&rec.Rating, &rec.ColorTag, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		done(nil)
		return rec, nil
	}
	if err != nil {
		done(err)
		return Record{}, err
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	done(nil)
	return rec, nil
}

// SetRating stores a clamped rating for path.
func (s *SQLiteStore) SetRating(ctx context.Context, path string, rating int) error {
	done := metrics.ObserveStoreQuery("set_rating")
	err := s.upsert(ctx, path, func(rec *Record) {
		rec.Rating = ClampRating(rating)
	})
	done(err)
	return err
}

// SetColorTag stores a color tag for path.
func (s *SQLiteStore) SetColorTag(ctx context.Context, path, tag string) error {
	done := metrics.ObserveStoreQuery("set_color")
	err := s.upsert(ctx, path, func(rec *Record) {
		rec.ColorTag = tag
	})
	done(err)
	return err
}

// upsert reads the current record, applies mutate, and writes the result
// back, pruning the row when the record returns to its zero state.
func (s *SQLiteStore) upsert(ctx context.Context, path string, mutate func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rec := Record{Path: path}
	err := s.db.QueryRowContext(ctx,
		"SELECT rating, color_tag FROM items WHERE path = ?", path,
	).Scan(&rec.Rating, &rec.ColorTag)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	mutate(&rec)

	if rec.IsZero() {
		_, err = s.db.ExecContext(ctx, "DELETE FROM items WHERE path = ?", path)
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (path, rating, color_tag, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET
			rating = excluded.rating,
			color_tag = excluded.color_tag,
			updated_at = excluded.updated_at
	`, path, rec.Rating, rec.ColorTag)
	return err
}

// ListByMinRating returns records with Rating >= min, ordered by path.
func (s *SQLiteStore) ListByMinRating(ctx context.Context, min int) ([]Record, error) {
	done := metrics.ObserveStoreQuery("list_by_rating")
	recs, err := s.list(ctx, "SELECT path, rating, color_tag, updated_at FROM items WHERE rating >= ? ORDER BY path", min)
	done(err)
	return recs, err
}

// ListByColorTag returns records carrying tag, ordered by path.
func (s *SQLiteStore) ListByColorTag(ctx context.Context, tag string) ([]Record, error) {
	done := metrics.ObserveStoreQuery("list_by_color")
	recs, err := s.list(ctx, "SELECT path, rating, color_tag, updated_at FROM items WHERE color_tag = ? ORDER BY path", tag)
	done(err)
	return recs, err
}

func (s *SQLiteStore) list(ctx context.Context, query string, arg any) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("failed to close result rows: %v", err)
		}
	}()

	var recs []Record
	for rows.Next() {
		var rec Record
		var updatedAt int64
		if err := rows.Scan(&rec.Path, &rec.Rating, &rec.ColorTag, &updatedAt); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
