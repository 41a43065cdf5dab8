package dedup

import (
	"context"
)

// ExistsStore is the slice of the story store the checker needs.
type ExistsStore interface {
	Exists(ctx context.Context, fingerprint, sourceURL string) (bool, error)
}

// Checker gates candidates before insertion. It never mutates state, so it is
// safe to call any number of times for the same candidate.
type Checker struct {
	store ExistsStore
}

func NewChecker(store ExistsStore) *Checker {
	return &Checker{store: store}
}

// Exists reports whether a non-rejected record already claims the fingerprint
// or the source URL. A hit means the candidate is a duplicate and should be
// skipped silently; duplicates are expected and frequent.
func (c *Checker) Exists(ctx context.Context, fingerprint, sourceURL string) (bool, error) {
	return c.store.Exists(ctx, fingerprint, sourceURL)
}
