package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"github.com/newsmith/newsmith/pkg/utils"
)

const (
	pathEnv       = "NEWSMITH_PROFILE"
	modeEnv       = "NEWSMITH_MODE"
	topicEnv      = "NEWSMITH_TOPIC"
	recipientsEnv = "NEWSMITH_REVIEW_RECIPIENTS"
)

// Profile is the deployment profile: which pipeline mode runs here, what
// topic is scouted, who reviews, and where distribution points. Secrets stay
// in the environment; the profile is committable.
type Profile struct {
	// Mode selects auto or reviewed. The two are mutually exclusive
	// deployment modes, not coexisting code paths.
	Mode string `yaml:"mode"`

	// Topic is the prompt handed to the trend-detection service.
	Topic string `yaml:"topic"`

	// PublicBaseURL is the site root used for article URLs and fan-out.
	PublicBaseURL string `yaml:"publicBaseUrl"`

	// ActionBaseURL is the root for email action links (the address this
	// service is reachable at by reviewers).
	ActionBaseURL string `yaml:"actionBaseUrl"`

	Review       ReviewConfig       `yaml:"review"`
	Distribution DistributionConfig `yaml:"distribution"`
}

type ReviewConfig struct {
	Recipients []string `yaml:"recipients"`
}

type DistributionConfig struct {
	CachePurgeURL    string `yaml:"cachePurgeUrl"`
	IndexNowEndpoint string `yaml:"indexNowEndpoint"`
	IndexNowKey      string `yaml:"indexNowKey"`
	SitemapPingURL   string `yaml:"sitemapPingUrl"`
}

const (
	ModeAuto     = "auto"
	ModeReviewed = "reviewed"
)

// Load reads the YAML profile named by NEWSMITH_PROFILE and applies
// environment overrides, then validates.
func Load() (*Profile, error) {
	var p Profile

	if path := os.Getenv(pathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
		}
	}

	p.applyEnvOverrides()

	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) applyEnvOverrides() {
	if v := os.Getenv(modeEnv); v != "" {
		p.Mode = v
	}
	if v := os.Getenv(topicEnv); v != "" {
		p.Topic = v
	}
	if v := os.Getenv(recipientsEnv); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		p.Review.Recipients = utils.RemoveEmptyStrings(parts)
	}
}

func (p *Profile) validate() error {
	switch p.Mode {
	case ModeAuto, ModeReviewed:
	case "":
		return fmt.Errorf("profile mode is required (auto or reviewed)")
	default:
		return fmt.Errorf("unknown profile mode %q (want auto or reviewed)", p.Mode)
	}

	if p.Topic == "" {
		return fmt.Errorf("profile topic is required")
	}
	if p.PublicBaseURL == "" {
		return fmt.Errorf("profile publicBaseUrl is required")
	}

	if p.Mode == ModeReviewed {
		if len(p.Review.Recipients) == 0 {
			return fmt.Errorf("reviewed mode requires at least one review recipient")
		}
		if p.ActionBaseURL == "" {
			return fmt.Errorf("reviewed mode requires actionBaseUrl for email links")
		}
	}
	return nil
}
