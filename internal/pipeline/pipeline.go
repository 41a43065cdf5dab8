package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/newsmith/newsmith/internal/dedup"
	"github.com/newsmith/newsmith/internal/detect"
	"github.com/newsmith/newsmith/internal/distribute"
	"github.com/newsmith/newsmith/internal/domain"
	"github.com/newsmith/newsmith/internal/generate"
	"github.com/newsmith/newsmith/internal/metrics"
	"github.com/newsmith/newsmith/internal/notify"
	"github.com/newsmith/newsmith/internal/storage"
)

// Mode selects one of the two deployment profiles. There is no hybrid: auto
// never sends review mail, reviewed never moves a story without a token.
type Mode string

const (
	// ModeAuto: detect -> generate -> publish with no human step.
	ModeAuto Mode = "auto"

	// ModeReviewed: a detection notice gates generation and a review notice
	// gates publication.
	ModeReviewed Mode = "reviewed"
)

// retryBatchSize bounds how many leftover detected records one run picks up.
const retryBatchSize = 20

// Detector is the detection stage as the pipeline consumes it.
type Detector interface {
	Detect(ctx context.Context) ([]domain.Candidate, error)
}

// Generator is the content-generation service as the pipeline consumes it.
type Generator interface {
	Generate(ctx context.Context, storyID uuid.UUID, meta domain.GenerationMeta) (generate.Result, error)
}

// Distributor fans out the post-publish side effects.
type Distributor interface {
	Run(ctx context.Context, slug string) []distribute.StepResult
}

// Notifier sends the human-review notices.
type Notifier interface {
	SendDetectionNotice(ctx context.Context, rec domain.StoryRecord)
	SendReviewNotice(ctx context.Context, rec domain.StoryRecord, info notify.ReviewInfo)
}

type Deps struct {
	Store       storage.StoryStore
	Checker     *dedup.Checker
	Detector    Detector
	Generator   Generator
	Distributor Distributor
	Notifier    Notifier
	Metrics     *metrics.Metrics
}

type Pipeline struct {
	store       storage.StoryStore
	checker     *dedup.Checker
	detector    Detector
	generator   Generator
	distributor Distributor
	notifier    Notifier
	metrics     *metrics.Metrics
	mode        Mode
}

func New(deps Deps, mode Mode) *Pipeline {
	return &Pipeline{
		store:       deps.Store,
		checker:     deps.Checker,
		detector:    deps.Detector,
		generator:   deps.Generator,
		distributor: deps.Distributor,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		mode:        mode,
	}
}

// Run executes one scheduled pass: detect, dedup, persist, and either start
// generation (auto) or notify reviewers (reviewed). Per-candidate failures
// never abort the batch; a detection failure aborts the run since nothing
// has been persisted yet. Leftover detected records from earlier failed runs
// are picked up again at the end.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.RunsTotal.Inc()

	candidates, err := p.detector.Detect(ctx)
	if err != nil {
		var dErr *detect.Error
		if errors.As(err, &dErr) {
			slog.Error("Detection run failed", "kind", dErr.Kind, "error", dErr.Err)
		} else {
			slog.Error("Detection run failed", "error", err)
		}
		return err
	}
	slog.Info("Detection pass complete", "candidates", len(candidates))

	var fresh []domain.StoryRecord
	for _, c := range candidates {
		rec, ok := p.persistCandidate(ctx, c)
		if ok {
			fresh = append(fresh, rec)
		}
	}

	switch p.mode {
	case ModeReviewed:
		for _, rec := range fresh {
			p.notifier.SendDetectionNotice(ctx, rec)
		}
	default:
		for _, rec := range fresh {
			p.StartGeneration(ctx, rec.ID)
		}
		p.retryLeftovers(ctx, fresh)
	}

	return nil
}

// persistCandidate runs the dedup gate and inserts the record. A duplicate is
// a normal skip, not an error; a store failure skips the candidate and is
// logged.
func (p *Pipeline) persistCandidate(ctx context.Context, c domain.Candidate) (domain.StoryRecord, bool) {
	fingerprint := dedup.Fingerprint(c.Headline)

	exists, err := p.checker.Exists(ctx, fingerprint, c.SourceURL)
	if err != nil {
		slog.Error("Dedup lookup failed, skipping candidate", "headline", c.Headline, "error", err)
		return domain.StoryRecord{}, false
	}
	if exists {
		p.metrics.CandidatesDuplicate.Inc()
		slog.Debug("Skipping duplicate candidate", "headline", c.Headline)
		return domain.StoryRecord{}, false
	}

	rec := domain.StoryRecord{
		Headline:            c.Headline,
		HeadlineFingerprint: fingerprint,
		SourceURL:           c.SourceURL,
		RelevanceScore:      c.RelevanceScore,
		TimelinessScore:     c.TimelinessScore,
		SearchQueries:       c.SearchQueries,
		Angle:               c.Angle,
		Status:              domain.StatusDetected,
	}

	id, err := p.store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// raced with a concurrent insert between lookup and write
			p.metrics.CandidatesDuplicate.Inc()
			return domain.StoryRecord{}, false
		}
		slog.Error("Failed to persist candidate", "headline", c.Headline, "error", err)
		return domain.StoryRecord{}, false
	}

	rec.ID = id
	p.metrics.CandidatesDetected.Inc()
	slog.Info("Story detected", "story_id", id, "headline", c.Headline, "relevance", c.RelevanceScore)
	return rec, true
}

// StartGeneration drives one story from detected through generating to
// published, or back to detected on failure. A lost CAS means another actor
// already took the story; that is a no-op, not an error.
func (p *Pipeline) StartGeneration(ctx context.Context, id uuid.UUID) {
	err := p.store.TransitionStatus(ctx, id, domain.StatusDetected, domain.StatusGenerating)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			slog.Debug("Story already claimed by another generation attempt", "story_id", id)
			return
		}
		slog.Error("Failed to claim story for generation", "story_id", id, "error", err)
		return
	}

	rec, err := p.store.Get(ctx, id)
	if err != nil {
		slog.Error("Failed to load story after claiming it", "story_id", id, "error", err)
		return
	}

	// The generation call is not owned by the triggering request: if the
	// scheduler's invocation budget expires mid-run, letting the call finish
	// is cheaper than a record stuck in generating with no compensating
	// transition. Only cancellation is detached; deadlines come from the
	// generator's own timeout.
	genCtx := context.WithoutCancel(ctx)

	result, err := p.generator.Generate(genCtx, rec.ID, rec.Meta())
	if err != nil {
		p.metrics.GenerationFailures.Inc()
		slog.Error("Generation failed, story returned for retry",
			"story_id", rec.ID,
			"headline", rec.Headline,
			"error", err,
		)
		if casErr := p.store.TransitionStatus(genCtx, id, domain.StatusGenerating, domain.StatusDetected); casErr != nil {
			slog.Error("Failed to return story to detected", "story_id", id, "error", casErr)
		}
		return
	}

	if p.mode == ModeReviewed {
		// generation done, publication waits for a publish-draft token
		p.notifier.SendReviewNotice(genCtx, rec, notify.ReviewInfo{
			Slug:          result.Slug,
			Title:         result.Title,
			WordCount:     result.WordCount,
			QualityOK:     result.QualityOK,
			QualityIssues: result.QualityIssues,
		})
		return
	}

	p.publish(genCtx, id, rec.Headline, result.Slug)
}

// Publish commits the published transition for a story whose draft is ready
// (slug already produced by generation) and fans out. Used by the
// publish-draft action; in reviewed mode the record sits in generating with
// its result stored by the generation service until a human signs off.
func (p *Pipeline) Publish(ctx context.Context, id uuid.UUID, slug string) error {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := p.store.MarkPublished(ctx, id, slug); err != nil {
		return err
	}
	p.metrics.StoriesPublished.Inc()
	slog.Info("Story published", "story_id", id, "headline", rec.Headline, "slug", slug)
	p.fanout(ctx, slug)
	return nil
}

func (p *Pipeline) publish(ctx context.Context, id uuid.UUID, headline, slug string) {
	if err := p.store.MarkPublished(ctx, id, slug); err != nil {
		slog.Error("Failed to mark story published", "story_id", id, "error", err)
		return
	}
	p.metrics.StoriesPublished.Inc()
	slog.Info("Story published", "story_id", id, "headline", headline, "slug", slug)
	p.fanout(ctx, slug)
}

// fanout runs the distribution side effects. Failures are already logged per
// step; they never roll back publication.
func (p *Pipeline) fanout(ctx context.Context, slug string) {
	for _, step := range p.distributor.Run(ctx, slug) {
		if step.Err != nil {
			p.metrics.FanoutStepFailures.WithLabelValues(step.Step).Inc()
		}
	}
}

// retryLeftovers re-selects records still in detected from earlier runs.
// This is the implicit retry mechanism: no inline loop, just the next pass.
func (p *Pipeline) retryLeftovers(ctx context.Context, fresh []domain.StoryRecord) {
	freshIDs := make(map[uuid.UUID]bool, len(fresh))
	for _, rec := range fresh {
		freshIDs[rec.ID] = true
	}

	leftovers, err := p.store.ListByStatus(ctx, domain.StatusDetected, retryBatchSize)
	if err != nil {
		slog.Error("Failed to list retryable stories", "error", err)
		return
	}
	for _, rec := range leftovers {
		if freshIDs[rec.ID] {
			continue
		}
		slog.Info("Retrying leftover story", "story_id", rec.ID, "headline", rec.Headline, "age", time.Since(rec.CreatedAt))
		p.StartGeneration(ctx, rec.ID)
	}
}

// Mode returns the configured pipeline mode.
func (p *Pipeline) Mode() Mode {
	return p.mode
}
