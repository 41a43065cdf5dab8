package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/newsmith/newsmith/internal/domain"
)

const maxAttempts = 3

// Result is what the generation service reports on success. The slug is the
// contract; the review fields feed the post-generation notice.
type Result struct {
	Slug          string   `json:"slug"`
	Title         string   `json:"title"`
	WordCount     int      `json:"word_count"`
	QualityOK     bool     `json:"quality_ok"`
	QualityIssues []string `json:"quality_issues,omitempty"`
}

type request struct {
	StoryID uuid.UUID             `json:"story_id"`
	Meta    domain.GenerationMeta `json:"meta"`
}

type Config struct {
	BaseURL string

	// Token authenticates against the generation service. Empty means the
	// service is unauthenticated (local setups).
	Token string

	// Timeout bounds a single drafting attempt. Generation is long-running;
	// this is minutes, not seconds.
	Timeout time.Duration
}

// Client calls the content-generation service. Drafting itself is a black
// box; the client only cares about slug-or-error.
type Client struct {
	http *http.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

// Generate asks the service to draft an article for the story. Transport
// errors and 5xx responses are retried with exponential backoff up to three
// attempts; 4xx responses are not, since resending the same payload cannot
// help. A final failure surfaces to the orchestrator, which returns the
// record to detected.
func (c *Client) Generate(ctx context.Context, storyID uuid.UUID, meta domain.GenerationMeta) (Result, error) {
	body, err := json.Marshal(request{StoryID: storyID, Meta: meta})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	var result Result
	operation := func() error {
		var attemptErr error
		result, attemptErr = c.attempt(ctx, body)
		return attemptErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (c *Client) attempt(ctx context.Context, body []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, backoff.Permanent(fmt.Errorf("failed to build generation request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Result{}, fmt.Errorf("generation service returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, backoff.Permanent(fmt.Errorf("generation service returned %d", resp.StatusCode))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read generation response: %w", err)
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, backoff.Permanent(fmt.Errorf("failed to decode generation response: %w", err))
	}
	if result.Slug == "" {
		return Result{}, backoff.Permanent(fmt.Errorf("generation response missing slug"))
	}
	return result, nil
}
