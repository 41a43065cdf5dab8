package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newsmith/newsmith/internal/dedup"
	"github.com/newsmith/newsmith/internal/distribute"
	"github.com/newsmith/newsmith/internal/domain"
	"github.com/newsmith/newsmith/internal/generate"
	"github.com/newsmith/newsmith/internal/metrics"
	"github.com/newsmith/newsmith/internal/notify"
	"github.com/newsmith/newsmith/internal/pipeline"
	"github.com/newsmith/newsmith/internal/storage/inmem"
	"github.com/newsmith/newsmith/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"
)

type noopDetector struct{}

func (noopDetector) Detect(ctx context.Context) ([]domain.Candidate, error) { return nil, nil }

type noopGenerator struct{}

func (noopGenerator) Generate(ctx context.Context, storyID uuid.UUID, meta domain.GenerationMeta) (generate.Result, error) {
	return generate.Result{Slug: "generated-slug"}, nil
}

type noopDistributor struct{}

func (noopDistributor) Run(ctx context.Context, slug string) []distribute.StepResult { return nil }

type noopNotifier struct{}

func (noopNotifier) SendDetectionNotice(ctx context.Context, rec domain.StoryRecord) {}
func (noopNotifier) SendReviewNotice(ctx context.Context, rec domain.StoryRecord, info notify.ReviewInfo) {
}

type env struct {
	e      *echo.Echo
	store  *inmem.Store
	issuer *token.Issuer
}

func newEnv(t *testing.T, mode pipeline.Mode) *env {
	t.Helper()

	store := inmem.NewStore()
	issuer := token.NewIssuer("test-secret")
	pipe := pipeline.New(pipeline.Deps{
		Store:       store,
		Checker:     dedup.NewChecker(store),
		Detector:    noopDetector{},
		Generator:   noopGenerator{},
		Distributor: noopDistributor{},
		Notifier:    noopNotifier{},
		Metrics:     metrics.New(),
	}, mode)

	e := echo.New()
	NewActionRouter(e, store, issuer, pipe).Bind()
	NewTriggerRouter(e, pipe, "trigger-secret", true).Bind()

	return &env{e: e, store: store, issuer: issuer}
}

func (env *env) insertDetected(t *testing.T, headline string) uuid.UUID {
	t.Helper()
	id, err := env.store.Insert(context.Background(), domain.StoryRecord{
		Headline:            headline,
		HeadlineFingerprint: dedup.Fingerprint(headline),
		Status:              domain.StatusDetected,
	})
	require.NoError(t, err)
	return id
}

func (env *env) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func actionPath(action, tok string) string {
	return "/actions/" + action + "?token=" + url.QueryEscape(tok)
}

func TestTrigger_RejectsBadBearer(t *testing.T) {
	env := newEnv(t, pipeline.ModeAuto)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"wrong secret", "Bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hooks/run", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			env.e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestTrigger_AcceptsValidBearer(t *testing.T) {
	env := newEnv(t, pipeline.ModeAuto)

	req := httptest.NewRequest(http.MethodPost, "/hooks/run", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer trigger-secret")
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "started")
}

func TestTrigger_SkippedWhenDisabled(t *testing.T) {
	store := inmem.NewStore()
	pipe := pipeline.New(pipeline.Deps{
		Store:       store,
		Checker:     dedup.NewChecker(store),
		Detector:    noopDetector{},
		Generator:   noopGenerator{},
		Distributor: noopDistributor{},
		Notifier:    noopNotifier{},
		Metrics:     metrics.New(),
	}, pipeline.ModeAuto)
	e := echo.New()
	NewTriggerRouter(e, pipe, "trigger-secret", false).Bind()

	req := httptest.NewRequest(http.MethodPost, "/hooks/run", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer trigger-secret")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skipped")
}

func TestAction_SkipStory(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)
	id := env.insertDetected(t, "Skippable story")

	tok, err := env.issuer.Issue(id, token.PurposeSkipStory, time.Hour)
	require.NoError(t, err)

	rec := env.get(actionPath("skip", tok))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skipped")

	story, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, story.Status)
}

func TestAction_SkipReplayIsRefused(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)
	id := env.insertDetected(t, "Skippable story")

	tok, err := env.issuer.Issue(id, token.PurposeSkipStory, time.Hour)
	require.NoError(t, err)

	first := env.get(actionPath("skip", tok))
	assert.Equal(t, http.StatusOK, first.Code)

	// same link clicked again: status already moved on
	second := env.get(actionPath("skip", tok))
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "no longer")
}

func TestAction_PublishDraft(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)
	id := env.insertDetected(t, "Reviewed story")
	require.NoError(t, env.store.TransitionStatus(context.Background(), id, domain.StatusDetected, domain.StatusGenerating))

	tok, err := env.issuer.IssuePublish(id, "reviewed-story", time.Hour)
	require.NoError(t, err)

	rec := env.get(actionPath("publish", tok))
	assert.Equal(t, http.StatusOK, rec.Code)

	story, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, story.Status)
	assert.Equal(t, "reviewed-story", story.Slug)
}

func TestAction_RejectDraft(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)
	id := env.insertDetected(t, "Rejected story")
	require.NoError(t, env.store.TransitionStatus(context.Background(), id, domain.StatusDetected, domain.StatusGenerating))

	tok, err := env.issuer.Issue(id, token.PurposeRejectDraft, time.Hour)
	require.NoError(t, err)

	rec := env.get(actionPath("reject", tok))
	assert.Equal(t, http.StatusOK, rec.Code)

	story, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, story.Status)
}

func TestAction_CrossPurposeTokenRefused(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)
	id := env.insertDetected(t, "Story")
	require.NoError(t, env.store.TransitionStatus(context.Background(), id, domain.StatusDetected, domain.StatusGenerating))

	// approve-generation token aimed at the publish endpoint
	tok, err := env.issuer.Issue(id, token.PurposeApproveGeneration, time.Hour)
	require.NoError(t, err)

	rec := env.get(actionPath("publish", tok))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not authorize")
}

func TestAction_ExpiredTokenRefused(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)
	id := env.insertDetected(t, "Story")

	tok, err := env.issuer.Issue(id, token.PurposeSkipStory, -time.Minute)
	require.NoError(t, err)

	rec := env.get(actionPath("skip", tok))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")
}

func TestAction_MissingTokenRefused(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)

	rec := env.get("/actions/skip")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAction_UnknownStoryRefused(t *testing.T) {
	env := newEnv(t, pipeline.ModeReviewed)

	tok, err := env.issuer.Issue(uuid.New(), token.PurposeSkipStory, time.Hour)
	require.NoError(t, err)

	rec := env.get(actionPath("skip", tok))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no longer exists")
}

func TestAction_ApproveStartsGeneration(t *testing.T) {
	env := newEnv(t, pipeline.ModeAuto)
	id := env.insertDetected(t, "Approved story")

	tok, err := env.issuer.Issue(id, token.PurposeApproveGeneration, time.Hour)
	require.NoError(t, err)

	rec := env.get(actionPath("approve", tok))
	assert.Equal(t, http.StatusOK, rec.Code)

	// generation runs in the background
	require.Eventually(t, func() bool {
		story, err := env.store.Get(context.Background(), id)
		return err == nil && story.Status == domain.StatusPublished
	}, 2*time.Second, 10*time.Millisecond)
}
