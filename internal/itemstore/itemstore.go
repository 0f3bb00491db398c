package itemstore

import (
	"context"
	"time"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// MaxRating is the upper bound of the rating scale; ratings are clamped to
// [0, MaxRating] at every boundary.
const MaxRating = 5

// Record is the persisted annotation state of one gallery item, keyed by
// its archive path.
type Record struct {
	Path      string
	Rating    int
	ColorTag  string
	UpdatedAt time.Time
}

// IsZero reports whether the record carries no annotation. Zero records are
// pruned from the store rather than kept as empty rows.
func (r Record) IsZero() bool {
	return r.Rating == 0 && r.ColorTag == ""
}

// Store persists item records. Implementations are safe for concurrent use.
type Store interface {
	// Item returns the record for path. A missing record is not an error;
	// it yields a zero Record with Path set.
	Item(ctx context.Context, path string) (Record, error)

	// SetRating stores a rating for path, clamped to [0, MaxRating].
	SetRating(ctx context.Context, path string, rating int) error

	// SetColorTag stores a color tag for path. An empty tag combined with a
	// zero rating removes the record.
	SetColorTag(ctx context.Context, path, tag string) error

	// ListByMinRating returns all records with Rating >= min, ordered by path.
	ListByMinRating(ctx context.Context, min int) ([]Record, error)

	// ListByColorTag returns all records carrying tag, ordered by path.
	ListByColorTag(ctx context.Context, tag string) ([]Record, error)

	Close() error
}

// ClampRating bounds a rating to the [0, MaxRating] scale.
func ClampRating(rating int) int {
	if rating < 0 {
		return 0
	}
	if rating > MaxRating {
		return MaxRating
	}
	return rating
}

// Accessor binds a Store to one item path, exposing the simple read/write
// surface the metadata tracker writes through. Reads are served from the
// last known values; writes go to the store synchronously.
type Accessor struct {
	store  Store
	path   string
	rating int
	color  string
}

// NewAccessor loads the current record for path and returns an accessor
// bound to it.
func NewAccessor(ctx context.Context, store Store, path string) (*Accessor, error) {
	rec, err := store.Item(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Accessor{store: store, path: path, rating: rec.Rating, color: rec.ColorTag}, nil
}

// Path returns the item path the accessor is bound to.
func (a *Accessor) Path() string { return a.path }

// Rating returns the last known rating.
func (a *Accessor) Rating() int { return a.rating }

// SetRating writes a rating through to the store.
func (a *Accessor) SetRating(rating int) error {
	rating = ClampRating(rating)
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := a.store.SetRating(ctx, a.path, rating); err != nil {
		return err
	}
	a.rating = rating
	return nil
}

// ColorTag returns the last known color tag.
func (a *Accessor) ColorTag() string { return a.color }

// SetColorTag writes a color tag through to the store.
func (a *Accessor) SetColorTag(tag string) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := a.store.SetColorTag(ctx, a.path, tag); err != nil {
		return err
	}
	a.color = tag
	return nil
}
