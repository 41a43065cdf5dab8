package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/newsmith/newsmith/internal/domain"
	"github.com/newsmith/newsmith/internal/pipeline"
	"github.com/newsmith/newsmith/internal/storage"
	"github.com/newsmith/newsmith/internal/token"
)

// ActionRouter serves the email action links. Every response is a small
// human-readable page: the person clicking is a reviewer in a mail client,
// not an API consumer.
type ActionRouter struct {
	e      *echo.Echo
	store  storage.StoryStore
	issuer *token.Issuer
	pipe   *pipeline.Pipeline
}

func NewActionRouter(e *echo.Echo, store storage.StoryStore, issuer *token.Issuer, pipe *pipeline.Pipeline) *ActionRouter {
	return &ActionRouter{
		e:      e,
		store:  store,
		issuer: issuer,
		pipe:   pipe,
	}
}

func (r *ActionRouter) Bind() {
	r.e.GET("/actions/approve", r.handleApprove)
	r.e.GET("/actions/skip", r.handleSkip)
	r.e.GET("/actions/publish", r.handlePublish)
	r.e.GET("/actions/reject", r.handleReject)
}

// handleApprove consumes an approve-generation token and starts generation.
// The long-running generation call happens in the background; the reviewer
// gets an immediate confirmation.
func (r *ActionRouter) handleApprove(c echo.Context) error {
	claims, ok := r.verify(c, token.PurposeApproveGeneration)
	if !ok {
		return nil
	}

	rec, ok := r.load(c, claims.SubjectID)
	if !ok {
		return nil
	}
	if rec.Status != domain.StatusDetected {
		return refusalPage(c, "This story is no longer waiting for approval (status: "+string(rec.Status)+").")
	}

	go r.pipe.StartGeneration(context.Background(), rec.ID)

	return confirmationPage(c, fmt.Sprintf("Generation approved for %q. You will receive a review notice when the draft is ready.", rec.Headline))
}

func (r *ActionRouter) handleSkip(c echo.Context) error {
	claims, ok := r.verify(c, token.PurposeSkipStory)
	if !ok {
		return nil
	}

	rec, ok := r.load(c, claims.SubjectID)
	if !ok {
		return nil
	}

	err := r.store.TransitionStatus(c.Request().Context(), rec.ID, domain.StatusDetected, domain.StatusRejected)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return refusalPage(c, "This story already moved on and can no longer be skipped (status: "+string(rec.Status)+").")
		}
		return errorPage(c, err)
	}
	return confirmationPage(c, fmt.Sprintf("Story %q was skipped.", rec.Headline))
}

// handlePublish consumes a publish-draft token. The slug rides inside the
// token since an unpublished record never stores one.
func (r *ActionRouter) handlePublish(c echo.Context) error {
	claims, ok := r.verify(c, token.PurposePublishDraft)
	if !ok {
		return nil
	}
	if claims.Slug == "" {
		return refusalPage(c, "This link is missing its draft reference. Ask for a fresh review notice.")
	}

	rec, ok := r.load(c, claims.SubjectID)
	if !ok {
		return nil
	}

	err := r.pipe.Publish(c.Request().Context(), rec.ID, claims.Slug)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return refusalPage(c, "This draft is no longer publishable (status: "+string(rec.Status)+").")
		}
		return errorPage(c, err)
	}
	return confirmationPage(c, fmt.Sprintf("Story %q is now published.", rec.Headline))
}

func (r *ActionRouter) handleReject(c echo.Context) error {
	claims, ok := r.verify(c, token.PurposeRejectDraft)
	if !ok {
		return nil
	}

	rec, ok := r.load(c, claims.SubjectID)
	if !ok {
		return nil
	}

	err := r.store.TransitionStatus(c.Request().Context(), rec.ID, domain.StatusGenerating, domain.StatusRejected)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return refusalPage(c, "This draft is no longer rejectable (status: "+string(rec.Status)+").")
		}
		return errorPage(c, err)
	}
	return confirmationPage(c, fmt.Sprintf("Draft for %q was rejected.", rec.Headline))
}

// verify checks the token for the endpoint's purpose. On failure it writes
// the refusal page itself and returns ok=false.
func (r *ActionRouter) verify(c echo.Context, purpose token.Purpose) (token.Claims, bool) {
	tok := c.QueryParam("token")
	if tok == "" {
		_ = refusalPage(c, "This link is missing its token.")
		return token.Claims{}, false
	}

	claims, err := r.issuer.Verify(tok, purpose)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			_ = refusalPage(c, "This link has expired. Ask for a fresh notice.")
		case errors.Is(err, token.ErrWrongPurpose):
			_ = refusalPage(c, "This link does not authorize this action.")
		default:
			_ = refusalPage(c, "This link is not valid.")
		}
		return token.Claims{}, false
	}
	return claims, true
}

func (r *ActionRouter) load(c echo.Context, id uuid.UUID) (domain.StoryRecord, bool) {
	rec, err := r.store.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = refusalPage(c, "The story behind this link no longer exists.")
		} else {
			_ = errorPage(c, err)
		}
		return domain.StoryRecord{}, false
	}
	return rec, true
}

func confirmationPage(c echo.Context, message string) error {
	return c.HTML(http.StatusOK, page("Done", message))
}

func refusalPage(c echo.Context, message string) error {
	return c.HTML(http.StatusConflict, page("Not applied", message))
}

func errorPage(c echo.Context, err error) error {
	c.Logger().Error(err)
	return c.HTML(http.StatusInternalServerError, page("Something went wrong", "The action could not be completed. Try again later."))
}

func page(title, message string) string {
	return fmt.Sprintf(
		`<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>`,
		title, title, message,
	)
}
