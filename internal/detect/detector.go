package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/newsmith/newsmith/internal/domain"
)

// RelevanceThreshold is the fixed policy cutoff: candidates scoring below it
// are discarded without leaving any trace in the store.
const RelevanceThreshold = 7.0

const maxRawPayloadLog = 512

const systemPrompt = `You are a news trend scout for a niche publication.
Given the topic below, return the currently trending stories most relevant to it.
Respond with a JSON object of the form:
{"candidates": [{"headline": string, "source_url": string, "search_queries": [string],
"relevance_score": number 0-10, "timeliness_score": number 0-10, "angle": string}]}
Return only JSON.`

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Topic   string
	Timeout time.Duration
}

// Detector calls the trend-detection service and turns its structured
// response into candidates ready for dedup.
type Detector struct {
	client *openai.Client
	cfg    Config
}

func NewDetector(cfg Config) *Detector {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Detector{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

type detectionResponse struct {
	Candidates []domain.Candidate `json:"candidates"`
}

// Detect runs one detection pass. Errors carry a kind (upstream vs malformed)
// so the caller can log accordingly; both abort the current run without
// touching stored state.
func (d *Detector) Detect(ctx context.Context) ([]domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: d.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Topic: " + d.cfg.Topic,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, upstreamErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, upstreamErr(fmt.Errorf("detection response has no choices"))
	}

	raw := resp.Choices[0].Message.Content
	parsed, err := parseCandidates(raw)
	if err != nil {
		slog.Error("Detection response failed validation",
			"error", err,
			"payload", truncate(raw, maxRawPayloadLog),
		)
		return nil, malformedErr(err)
	}

	kept := filter(parsed)
	if dropped := len(parsed) - len(kept); dropped > 0 {
		slog.Debug("Dropped unusable or sub-threshold candidates", "dropped", dropped, "kept", len(kept))
	}
	return kept, nil
}

func parseCandidates(raw string) ([]domain.Candidate, error) {
	cleaned := stripCodeFences(raw)

	var resp detectionResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	if resp.Candidates == nil {
		return nil, fmt.Errorf("missing candidates field")
	}
	return resp.Candidates, nil
}

// filter applies the relevance threshold and drops structurally unusable
// entries. Sub-threshold candidates are discarded, not recorded; only stories
// that reach persistence get a lifecycle.
func filter(candidates []domain.Candidate) []domain.Candidate {
	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Headline) == "" {
			continue
		}
		c.RelevanceScore = clampScore(c.RelevanceScore)
		c.TimelinessScore = clampScore(c.TimelinessScore)
		if c.RelevanceScore < RelevanceThreshold {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// stripCodeFences removes a surrounding markdown fence that models sometimes
// wrap JSON in despite instructions.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
