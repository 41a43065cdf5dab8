package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newsmith/newsmith/internal/domain"
)

const uniqueViolationCode = "23505"

type StoryStore struct {
	db *pgxpool.Pool
}

func NewStoryStore(pool *ConnectionPool) *StoryStore {
	return &StoryStore{db: pool.conn}
}

func (s *StoryStore) Insert(ctx context.Context, rec domain.StoryRecord) (uuid.UUID, error) {
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

	cmd := `
        INSERT INTO stories
            (id, headline, headline_fingerprint, source_url, relevance_score,
             timeliness_score, search_queries, angle, status, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
        RETURNING id;
    `
	var id uuid.UUID
	err := s.db.QueryRow(
		ctx,
		cmd,
		rec.ID,
		rec.Headline,
		rec.HeadlineFingerprint,
		rec.SourceURL,
		rec.RelevanceScore,
		rec.TimelinessScore,
		rec.SearchQueries,
		rec.Angle,
		rec.Status,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return uuid.UUID{}, domain.ErrDuplicate
		}
		return uuid.UUID{}, fmt.Errorf("failed to insert story: %w", err)
	}

	return id, nil
}

func (s *StoryStore) Get(ctx context.Context, id uuid.UUID) (domain.StoryRecord, error) {
	cmd := `
        SELECT id, headline, headline_fingerprint, COALESCE(source_url, ''),
               relevance_score, timeliness_score, search_queries, angle, status,
               COALESCE(slug, ''), created_at, updated_at,
               COALESCE(published_at, 'epoch'::timestamptz)
        FROM stories
        WHERE id = $1;
    `
	var rec domain.StoryRecord
	err := s.db.QueryRow(ctx, cmd, id).Scan(
		&rec.ID,
		&rec.Headline,
		&rec.HeadlineFingerprint,
		&rec.SourceURL,
		&rec.RelevanceScore,
		&rec.TimelinessScore,
		&rec.SearchQueries,
		&rec.Angle,
		&rec.Status,
		&rec.Slug,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.PublishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoryRecord{}, domain.ErrNotFound
		}
		return domain.StoryRecord{}, fmt.Errorf("failed to get story: %w", err)
	}
	return rec, nil
}

func (s *StoryStore) Exists(ctx context.Context, fingerprint, sourceURL string) (bool, error) {
	cmd := `
        SELECT EXISTS (
            SELECT 1 FROM stories
            WHERE status <> 'rejected'
              AND (headline_fingerprint = $1 OR ($2 <> '' AND source_url = $2))
        );
    `
	var exists bool
	if err := s.db.QueryRow(ctx, cmd, fingerprint, sourceURL).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check story existence: %w", err)
	}
	return exists, nil
}

func (s *StoryStore) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.StoryRecord, error) {
	cmd := `
        SELECT id, headline, headline_fingerprint, COALESCE(source_url, ''),
               relevance_score, timeliness_score, search_queries, angle, status,
               COALESCE(slug, ''), created_at, updated_at,
               COALESCE(published_at, 'epoch'::timestamptz)
        FROM stories
        WHERE status = $1
        ORDER BY created_at ASC
        LIMIT $2;
    `
	rows, err := s.db.Query(ctx, cmd, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	var records []domain.StoryRecord
	for rows.Next() {
		var rec domain.StoryRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Headline,
			&rec.HeadlineFingerprint,
			&rec.SourceURL,
			&rec.RelevanceScore,
			&rec.TimelinessScore,
			&rec.SearchQueries,
			&rec.Angle,
			&rec.Status,
			&rec.Slug,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&rec.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// TransitionStatus is the store-level compare-and-swap that keeps a record
// from being in generating twice concurrently.
func (s *StoryStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	if !domain.CanTransition(from, to) {
		return domain.ErrConflict
	}

	cmd := `
        UPDATE stories
        SET status = $3, updated_at = now()
        WHERE id = $1 AND status = $2;
    `
	tag, err := s.db.Exec(ctx, cmd, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to transition story status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

func (s *StoryStore) MarkPublished(ctx context.Context, id uuid.UUID, slug string) error {
	cmd := `
        UPDATE stories
        SET status = 'published', slug = $2, published_at = now(), updated_at = now()
        WHERE id = $1 AND status = 'generating';
    `
	tag, err := s.db.Exec(ctx, cmd, id, slug)
	if err != nil {
		return fmt.Errorf("failed to mark story published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

func (s *StoryStore) conflictOrNotFound(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stories WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to inspect story after zero-row update: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
