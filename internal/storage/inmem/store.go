package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newsmith/newsmith/internal/domain"
)

// Store is an in-memory StoryStore with the same conflict and duplicate
// semantics as the Postgres implementation. Used by tests.
type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.StoryRecord
}

func NewStore() *Store {
	return &Store{
		records: make(map[uuid.UUID]domain.StoryRecord),
	}
}

func (s *Store) Insert(ctx context.Context, rec domain.StoryRecord) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.Status == domain.StatusRejected {
			continue
		}
		if existing.HeadlineFingerprint == rec.HeadlineFingerprint {
			return uuid.UUID{}, domain.ErrDuplicate
		}
		if rec.SourceURL != "" && existing.SourceURL == rec.SourceURL {
			return uuid.UUID{}, domain.ErrDuplicate
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = domain.StatusDetected
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	s.records[rec.ID] = rec
	return rec.ID, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.StoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.StoryRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Exists(ctx context.Context, fingerprint, sourceURL string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Status == domain.StatusRejected {
			continue
		}
		if rec.HeadlineFingerprint == fingerprint {
			return true, nil
		}
		if sourceURL != "" && rec.SourceURL == sourceURL {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.StoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []domain.StoryRecord
	for _, rec := range s.records {
		if rec.Status == status {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	if !domain.CanTransition(from, to) {
		return domain.ErrConflict
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status != from {
		return domain.ErrConflict
	}

	rec.Status = to
	rec.UpdatedAt = time.Now()
	s.records[id] = rec
	return nil
}

func (s *Store) MarkPublished(ctx context.Context, id uuid.UUID, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status != domain.StatusGenerating {
		return domain.ErrConflict
	}

	now := time.Now()
	rec.Status = domain.StatusPublished
	rec.Slug = slug
	rec.PublishedAt = now
	rec.UpdatedAt = now
	s.records[id] = rec
	return nil
}
