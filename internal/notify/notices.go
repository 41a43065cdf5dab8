package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/newsmith/newsmith/internal/domain"
	"github.com/newsmith/newsmith/internal/token"
)

// Gateway builds and sends the two human-review notices. Send failures are
// logged and swallowed: the story waits in its current state until an
// operator notices, which beats a silent duplicate send.
type Gateway struct {
	sender  Sender
	issuer  *token.Issuer
	baseURL string
	ttl     time.Duration
}

func NewGateway(sender Sender, issuer *token.Issuer, baseURL string, ttl time.Duration) *Gateway {
	return &Gateway{
		sender:  sender,
		issuer:  issuer,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
	}
}

// NopGateway serves auto deployments, which send no mail.
type NopGateway struct{}

func (NopGateway) SendDetectionNotice(ctx context.Context, rec domain.StoryRecord) {}

func (NopGateway) SendReviewNotice(ctx context.Context, rec domain.StoryRecord, info ReviewInfo) {}

// ReviewInfo carries the generation output the review notice reports on. The
// slug travels inside the publish-draft token rather than the store, since an
// unpublished record never holds a slug.
type ReviewInfo struct {
	Slug          string
	Title         string
	WordCount     int
	QualityOK     bool
	QualityIssues []string
}

// SendDetectionNotice offers approve/skip on a freshly detected story.
func (g *Gateway) SendDetectionNotice(ctx context.Context, rec domain.StoryRecord) {
	approveLink, err := g.actionLink(rec, "approve", token.PurposeApproveGeneration)
	if err != nil {
		slog.Error("Failed to build approve link", "story_id", rec.ID, "error", err)
		return
	}
	skipLink, err := g.actionLink(rec, "skip", token.PurposeSkipStory)
	if err != nil {
		slog.Error("Failed to build skip link", "story_id", rec.ID, "error", err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A trending story was detected and is waiting for review.\n\n")
	fmt.Fprintf(&b, "Headline:   %s\n", rec.Headline)
	if rec.SourceURL != "" {
		fmt.Fprintf(&b, "Source:     %s\n", rec.SourceURL)
	}
	fmt.Fprintf(&b, "Relevance:  %.1f / 10\n", rec.RelevanceScore)
	fmt.Fprintf(&b, "Timeliness: %.1f / 10\n", rec.TimelinessScore)
	if rec.Angle != "" {
		fmt.Fprintf(&b, "Angle:      %s\n", rec.Angle)
	}
	fmt.Fprintf(&b, "\nApprove generation: %s\n", approveLink)
	fmt.Fprintf(&b, "Skip this story:    %s\n", skipLink)

	g.send(ctx, rec, "New story detected: "+rec.Headline, b.String())
}

// SendReviewNotice offers publish/reject on a generated draft.
func (g *Gateway) SendReviewNotice(ctx context.Context, rec domain.StoryRecord, info ReviewInfo) {
	publishLink, err := g.publishLink(rec, info.Slug)
	if err != nil {
		slog.Error("Failed to build publish link", "story_id", rec.ID, "error", err)
		return
	}
	rejectLink, err := g.actionLink(rec, "reject", token.PurposeRejectDraft)
	if err != nil {
		slog.Error("Failed to build reject link", "story_id", rec.ID, "error", err)
		return
	}

	quality := "PASS"
	if !info.QualityOK {
		quality = "FAIL"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A draft is ready and is waiting for sign-off.\n\n")
	fmt.Fprintf(&b, "Title:      %s\n", info.Title)
	fmt.Fprintf(&b, "Word count: %d\n", info.WordCount)
	fmt.Fprintf(&b, "Quality:    %s\n", quality)
	for _, issue := range info.QualityIssues {
		fmt.Fprintf(&b, "  - %s\n", issue)
	}
	fmt.Fprintf(&b, "\nPublish draft: %s\n", publishLink)
	fmt.Fprintf(&b, "Reject draft:  %s\n", rejectLink)

	g.send(ctx, rec, "Draft ready for review: "+info.Title, b.String())
}

func (g *Gateway) actionLink(rec domain.StoryRecord, action string, purpose token.Purpose) (string, error) {
	tok, err := g.issuer.Issue(rec.ID, purpose, g.ttl)
	if err != nil {
		return "", err
	}
	return g.link(action, tok), nil
}

func (g *Gateway) publishLink(rec domain.StoryRecord, slug string) (string, error) {
	tok, err := g.issuer.IssuePublish(rec.ID, slug, g.ttl)
	if err != nil {
		return "", err
	}
	return g.link("publish", tok), nil
}

func (g *Gateway) link(action, tok string) string {
	return fmt.Sprintf("%s/actions/%s?token=%s", g.baseURL, action, url.QueryEscape(tok))
}

func (g *Gateway) send(ctx context.Context, rec domain.StoryRecord, subject, body string) {
	if err := g.sender.Send(ctx, subject, body); err != nil {
		slog.Error("Failed to send review notice",
			"story_id", rec.ID,
			"headline", rec.Headline,
			"error", err,
		)
	}
}
