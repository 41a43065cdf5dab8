package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/newsmith/newsmith/internal/dedup"
	"github.com/newsmith/newsmith/internal/detect"
	"github.com/newsmith/newsmith/internal/distribute"
	"github.com/newsmith/newsmith/internal/generate"
	"github.com/newsmith/newsmith/internal/metrics"
	"github.com/newsmith/newsmith/internal/notify"
	"github.com/newsmith/newsmith/internal/pipeline"
	"github.com/newsmith/newsmith/internal/profile"
	"github.com/newsmith/newsmith/internal/router"
	"github.com/newsmith/newsmith/internal/server"
	"github.com/newsmith/newsmith/internal/storage/pg"
	"github.com/newsmith/newsmith/internal/token"
	pkgserver "github.com/newsmith/newsmith/pkg/server"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	prof, err := profile.Load()
	if err != nil {
		slog.Error("Failed to load deployment profile", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pg.NewConnectionPool(ctx, pg.PoolConfig{ConnStr: cfg.DatabaseURL})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := pg.NewStoryStore(pool)
	issuer := token.NewIssuer(cfg.TokenSecret)
	m := metrics.New()

	notifier, err := buildNotifier(cfg, prof, issuer)
	if err != nil {
		slog.Error("Failed to set up notifications", "error", err)
		os.Exit(1)
	}

	pipe := pipeline.New(pipeline.Deps{
		Store:   store,
		Checker: dedup.NewChecker(store),
		Detector: detect.NewDetector(detect.Config{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Topic:   prof.Topic,
			Timeout: cfg.DetectTimeout,
		}),
		Generator: generate.NewClient(generate.Config{
			BaseURL: cfg.GeneratorURL,
			Token:   cfg.GeneratorToken,
			Timeout: cfg.GenerateTimeout,
		}),
		Distributor: distribute.NewFanout(distribute.Config{
			CachePurgeURL:    prof.Distribution.CachePurgeURL,
			IndexNowEndpoint: prof.Distribution.IndexNowEndpoint,
			IndexNowKey:      prof.Distribution.IndexNowKey,
			SitemapPingURL:   prof.Distribution.SitemapPingURL,
			PublicBaseURL:    prof.PublicBaseURL,
		}),
		Notifier: notifier,
		Metrics:  m,
	}, pipeline.Mode(prof.Mode))

	s := server.NewServer(cfg, pkgserver.NewPingHealthChecker(pool), m.Handler())

	router.NewActionRouter(s.Echo, store, issuer, pipe).Bind()
	router.NewTriggerRouter(s.Echo, pipe, cfg.TriggerSecret, cfg.Enabled).Bind()

	slog.Info("Starting newsmith", "mode", prof.Mode, "topic", prof.Topic, "enabled", cfg.Enabled)

	if err := s.Start(); err != nil {
		s.Echo.Logger.Error("Failed to start server: ", err)
		os.Exit(1)
	}
}

// buildNotifier wires SMTP for reviewed deployments. Auto deployments run
// without mail entirely.
func buildNotifier(cfg *server.Config, prof *profile.Profile, issuer *token.Issuer) (pipeline.Notifier, error) {
	if prof.Mode != profile.ModeReviewed {
		return notify.NopGateway{}, nil
	}

	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       prof.Review.Recipients,
	})
	if err != nil {
		return nil, err
	}
	return notify.NewGateway(sender, issuer, prof.ActionBaseURL, cfg.ActionTokenTTL), nil
}
