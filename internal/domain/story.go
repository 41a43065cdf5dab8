package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle stage of a story record.
type Status string

const (
	// StatusDetected: persisted after dedup, waiting for generation.
	StatusDetected Status = "detected"

	// StatusGenerating: a generation call is in flight.
	StatusGenerating Status = "generating"

	// StatusPublished: terminal success, slug assigned.
	StatusPublished Status = "published"

	// StatusRejected: terminal, reached only through an explicit human action.
	StatusRejected Status = "rejected"
)

// allowedTransitions encodes the state machine. The only backward edge is
// generating -> detected, which makes a failed generation retryable on the
// next scheduled run.
var allowedTransitions = map[Status][]Status{
	StatusDetected:   {StatusGenerating, StatusRejected},
	StatusGenerating: {StatusPublished, StatusDetected, StatusRejected},
	StatusPublished:  {},
	StatusRejected:   {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions.
func (s Status) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

type StoryRecord struct {
	ID                  uuid.UUID `json:"id"`
	Headline            string    `json:"headline"`
	HeadlineFingerprint string    `json:"headlineFingerprint"`
	SourceURL           string    `json:"sourceUrl,omitempty"`
	RelevanceScore      float64   `json:"relevanceScore"`
	TimelinessScore     float64   `json:"timelinessScore"`
	SearchQueries       []string  `json:"searchQueries,omitempty"`
	Angle               string    `json:"angle,omitempty"`
	Status              Status    `json:"status"`
	Slug                string    `json:"slug,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	PublishedAt         time.Time `json:"publishedAt,omitempty"`
}

// Candidate is a detection-service result before dedup and persistence.
type Candidate struct {
	Headline        string   `json:"headline"`
	SourceURL       string   `json:"source_url"`
	SearchQueries   []string `json:"search_queries"`
	RelevanceScore  float64  `json:"relevance_score"`
	TimelinessScore float64  `json:"timeliness_score"`
	Angle           string   `json:"angle"`
}

// GenerationMeta is the detection metadata forwarded to the generation
// service alongside the story id.
type GenerationMeta struct {
	Headline      string   `json:"headline"`
	SourceURL     string   `json:"source_url,omitempty"`
	SearchQueries []string `json:"search_queries,omitempty"`
	Angle         string   `json:"angle,omitempty"`
}

// Meta extracts the generation metadata from a persisted record.
func (r StoryRecord) Meta() GenerationMeta {
	return GenerationMeta{
		Headline:      r.Headline,
		SourceURL:     r.SourceURL,
		SearchQueries: r.SearchQueries,
		Angle:         r.Angle,
	}
}
