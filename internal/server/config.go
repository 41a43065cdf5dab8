package server

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/newsmith/newsmith/pkg/config/env"
)

// Config holds everything the process reads from the environment. Secrets
// live here and never in the deployment profile.
type Config struct {
	Port string

	DatabaseURL string

	// TokenSecret signs action tokens; TriggerSecret authenticates the
	// scheduler. They are independent so one can rotate without the other.
	TokenSecret   string
	TriggerSecret string

	// Enabled gates pipeline runs. A disabled instance still serves action
	// links so outstanding review emails keep working.
	Enabled bool

	ActionTokenTTL time.Duration

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	DetectTimeout time.Duration

	GeneratorURL    string
	GeneratorToken  string
	GenerateTimeout time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func LoadConfig() (*Config, error) {
	if err := env.LoadDotEnv(os.Getenv("APP_ENV"), ".env"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:            getEnvOr("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		TokenSecret:     os.Getenv("TOKEN_SECRET"),
		TriggerSecret:   os.Getenv("TRIGGER_SECRET"),
		Enabled:         getEnvOr("PIPELINE_ENABLED", "true") == "true",
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:     getEnvOr("OPENAI_MODEL", "gpt-4o-mini"),
		GeneratorURL:    os.Getenv("GENERATOR_URL"),
		GeneratorToken:  os.Getenv("GENERATOR_TOKEN"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPUsername:    os.Getenv("SMTP_USERNAME"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:        os.Getenv("SMTP_FROM"),
	}

	var err error
	if cfg.ActionTokenTTL, err = getDurationOr("ACTION_TOKEN_TTL", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DetectTimeout, err = getDurationOr("DETECT_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.GenerateTimeout, err = getDurationOr("GENERATE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getIntOr("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validatePort(c.Port); err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	if c.TriggerSecret == "" {
		return errors.New("TRIGGER_SECRET is required")
	}
	if c.OpenAIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	if c.GeneratorURL == "" {
		return errors.New("GENERATOR_URL is required")
	}
	return nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return n, nil
}

func getDurationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return errors.New("port must be a number")
	}
	if portNum < 1 || portNum > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}
