package router

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/newsmith/newsmith/internal/pipeline"
)

// TriggerRouter serves the scheduler entry point. The external cron hits it
// at a fixed cadence; the pipeline itself has no internal scheduler.
type TriggerRouter struct {
	e       *echo.Echo
	pipe    *pipeline.Pipeline
	secret  string
	enabled bool
}

func NewTriggerRouter(e *echo.Echo, pipe *pipeline.Pipeline, secret string, enabled bool) *TriggerRouter {
	return &TriggerRouter{
		e:       e,
		pipe:    pipe,
		secret:  secret,
		enabled: enabled,
	}
}

func (r *TriggerRouter) Bind() {
	r.e.POST("/hooks/run", r.handleRun)
}

func (r *TriggerRouter) handleRun(c echo.Context) error {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	bearer, found := strings.CutPrefix(auth, "Bearer ")
	if !found || subtle.ConstantTimeCompare([]byte(bearer), []byte(r.secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	if !r.enabled {
		return c.JSON(http.StatusOK, map[string]string{"status": "skipped"})
	}

	// The run is not owned by this request: the scheduler's HTTP timeout
	// must not cancel in-flight generation calls.
	go func() {
		if err := r.pipe.Run(context.Background()); err != nil {
			slog.Error("Pipeline run failed", "error", err)
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}
