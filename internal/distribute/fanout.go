package distribute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Config names the distribution targets. Empty fields disable their step.
type Config struct {
	// CachePurgeURL accepts POSTs with a list of paths to invalidate.
	CachePurgeURL string

	// IndexNowEndpoint and key per the IndexNow submission protocol.
	IndexNowEndpoint string
	IndexNowKey      string

	// SitemapPingURL is a generic search-engine ping endpoint.
	SitemapPingURL string

	// PublicBaseURL is the site root used to build article URLs.
	PublicBaseURL string

	StepTimeout time.Duration
}

// Fanout runs the best-effort side effects of publication: cache purge,
// IndexNow submission, sitemap ping. Steps are independent; a failure is
// logged and the remaining steps still run. Nothing here ever reverts a
// publication.
type Fanout struct {
	http *http.Client
	cfg  Config
}

func NewFanout(cfg Config) *Fanout {
	if cfg.StepTimeout == 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	return &Fanout{
		http: &http.Client{Timeout: cfg.StepTimeout},
		cfg:  cfg,
	}
}

// StepResult reports the outcome of one fan-out step.
type StepResult struct {
	Step string
	Err  error
}

// Run fans out for a freshly published article slug and returns the per-step
// outcomes. Callers treat failures as operational noise, not errors.
func (f *Fanout) Run(ctx context.Context, slug string) []StepResult {
	articleURL := f.cfg.PublicBaseURL + "/articles/" + slug

	results := []StepResult{
		{Step: "cache_purge", Err: f.purgeCache(ctx, "/articles/"+slug, "/articles")},
		{Step: "indexnow", Err: f.submitIndexNow(ctx, articleURL)},
		{Step: "sitemap_ping", Err: f.pingSitemap(ctx)},
	}

	for _, r := range results {
		if r.Err != nil {
			slog.Warn("Distribution step failed", "step", r.Step, "slug", slug, "error", r.Err)
		}
	}
	return results
}

func (f *Fanout) purgeCache(ctx context.Context, paths ...string) error {
	if f.cfg.CachePurgeURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string][]string{"paths": paths})
	if err != nil {
		return fmt.Errorf("failed to marshal purge request: %w", err)
	}
	return f.post(ctx, f.cfg.CachePurgeURL, body)
}

func (f *Fanout) submitIndexNow(ctx context.Context, articleURL string) error {
	if f.cfg.IndexNowEndpoint == "" {
		return nil
	}

	host := ""
	if u, err := url.Parse(f.cfg.PublicBaseURL); err == nil {
		host = u.Host
	}

	body, err := json.Marshal(map[string]any{
		"host":        host,
		"key":         f.cfg.IndexNowKey,
		"keyLocation": f.cfg.PublicBaseURL + "/" + f.cfg.IndexNowKey + ".txt",
		"urlList":     []string{articleURL},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal indexnow request: %w", err)
	}
	return f.post(ctx, f.cfg.IndexNowEndpoint, body)
}

func (f *Fanout) pingSitemap(ctx context.Context) error {
	if f.cfg.SitemapPingURL == "" {
		return nil
	}

	pingURL := f.cfg.SitemapPingURL + "?sitemap=" + url.QueryEscape(f.cfg.PublicBaseURL+"/sitemap.xml")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("sitemap ping failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sitemap ping returned %d", resp.StatusCode)
	}
	return nil
}

func (f *Fanout) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned %d", target, resp.StatusCode)
	}
	return nil
}
