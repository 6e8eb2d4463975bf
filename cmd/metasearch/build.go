package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/metasearch/internal/aggregator"
	"github.com/FranksOps/metasearch/internal/config"
	"github.com/FranksOps/metasearch/internal/enrich"
	"github.com/FranksOps/metasearch/internal/fingerprint"
	"github.com/FranksOps/metasearch/internal/pipeline"
	"github.com/FranksOps/metasearch/internal/scraper"
	"github.com/FranksOps/metasearch/internal/serp"
	"github.com/FranksOps/metasearch/internal/storage"
	"github.com/FranksOps/metasearch/internal/storage/csvbackend"
	"github.com/FranksOps/metasearch/internal/storage/jsonbackend"
	"github.com/FranksOps/metasearch/internal/storage/postgres"
	"github.com/FranksOps/metasearch/internal/storage/sqlite"
	"github.com/FranksOps/metasearch/pkg/proxy"
	"github.com/FranksOps/metasearch/pkg/ratelimit"
	"github.com/FranksOps/metasearch/pkg/useragent"
)

// robotsAgent is the product token matched against robots.txt groups.
const robotsAgent = "metasearch"

// app is the wired engine.
type app struct {
	pipeline   *pipeline.Pipeline
	aggregator *aggregator.Aggregator
	journal    *pipeline.Journal
}

func (a *app) Close() error { return a.journal.Close() }

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	uas := useragent.NewPool(nil)
	if cfg.ClientIdentification != "" {
		uas = useragent.Fixed(cfg.ClientIdentification)
	}

	var proxies *proxy.Pool
	if len(cfg.Proxies) > 0 {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.Add(cfg.Proxies...); err != nil {
			return nil, fmt.Errorf("proxies: %w", err)
		}
	}

	profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     cfg.RequestTimeout,
		UserAgents:  uas,
		Proxies:     proxies,
		Fingerprint: profile,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	backend, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}
	journal := pipeline.NewJournal(backend, logger)

	engineOpts := serp.Options{
		Getter:     fetcher,
		Logger:     logger,
		Google:     serp.GoogleConfig{BaseURL: cfg.Engines.Google.BaseURL, Language: cfg.Engines.Google.Language},
		Yandex:     serp.YandexConfig{BaseURL: cfg.Engines.Yandex.BaseURL, Region: cfg.Engines.Yandex.Region},
		DuckDuckGo: serp.DuckDuckGoConfig{BaseURL: cfg.Engines.DuckDuckGo.BaseURL},
		SearXNG:    serp.SearXNGConfig{BaseURL: cfg.Engines.SearXNG.BaseURL},
	}

	providers := make([]serp.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		p, err := serp.New(name, engineOpts)
		if err != nil {
			_ = journal.Close()
			return nil, err
		}
		providers = append(providers, serp.Guard(p, serp.GuardConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			Cooldown:    cfg.Breaker.Cooldown,
			Limiter:     ratelimit.NewLimiter(cfg.ProvidersRatePerSecond, 0.2),
			Observer:    journal.RecordSearch,
			Logger:      logger,
		}))
	}

	agg, err := aggregator.New(providers, aggregator.Options{
		PerProviderCount: cfg.PerProviderResultCount,
		RequestTimeout:   cfg.RequestTimeout,
		CacheSize:        cfg.Cache.Size,
		CacheTTL:         cfg.Cache.TTL,
		Logger:           logger,
	})
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	fetchOpts := enrich.FetcherOptions{
		DescriptionMaxLength: cfg.DescriptionMaxLength,
		Blocks:               cfg.DescriptionBlocks,
		UserAgent:            robotsAgent,
		Logger:               logger,
	}
	if cfg.Enrich.RespectRobots {
		fetchOpts.Robots = scraper.NewRobotsTxtAuditor(fetcher, logger)
	}
	stage := enrich.NewStage(enrich.NewFetcher(fetcher, fetchOpts), enrich.StageOptions{
		Concurrency: cfg.Enrich.Concurrency,
		Logger:      logger,
	})

	logger.Debug("engine ready",
		"providers", agg.Providers(),
		"page_size", agg.PageSize(),
		"journal", cfg.Journal.Backend,
	)

	return &app{
		pipeline:   pipeline.New(agg, stage, pipeline.Options{Journal: journal, Logger: logger}),
		aggregator: agg,
		journal:    journal,
	}, nil
}

// openJournal returns nil for the none backend.
func openJournal(ctx context.Context, cfg config.JournalConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Backend {
	case config.JournalNone, "":
		return nil, nil
	case config.JournalSQLite:
		b, err = sqlite.New(cfg.DSN)
	case config.JournalPostgres:
		b, err = postgres.New(ctx, cfg.DSN)
	case config.JournalJSON:
		b, err = jsonbackend.New(cfg.DSN)
	case config.JournalCSV:
		b, err = csvbackend.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s journal: %w", cfg.Backend, err)
	}
	return b, nil
}
