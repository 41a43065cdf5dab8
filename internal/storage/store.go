package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/newsmith/newsmith/internal/domain"
)

// StoryStore is the persistence contract for story records. All mutation is
// through single-record conditional updates; no multi-record transactions.
type StoryStore interface {
	// Insert persists a new record in state detected. Returns
	// domain.ErrDuplicate when a non-rejected record already holds the same
	// fingerprint or source URL (backstop behind the dedup pre-check).
	Insert(ctx context.Context, rec domain.StoryRecord) (uuid.UUID, error)

	Get(ctx context.Context, id uuid.UUID) (domain.StoryRecord, error)

	// Exists reports whether a non-rejected record matches the fingerprint
	// or the non-empty source URL.
	Exists(ctx context.Context, fingerprint, sourceURL string) (bool, error)

	// ListByStatus returns up to limit records in the given status, oldest
	// first. The scheduled run uses it to re-select retryable records.
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.StoryRecord, error)

	// TransitionStatus performs a compare-and-swap on status. Returns
	// domain.ErrConflict when the record is no longer in the expected
	// status, domain.ErrNotFound when it does not exist.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error

	// MarkPublished moves a generating record to published, setting slug and
	// published_at atomically. Same conflict semantics as TransitionStatus.
	MarkPublished(ctx context.Context, id uuid.UUID, slug string) error
}
