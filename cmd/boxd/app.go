package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/adapter/postgres"
	redisadapter "github.com/user/boxd-office/internal/adapter/redis"
	"github.com/user/boxd-office/internal/config"
	"github.com/user/boxd-office/internal/crawler"
	"github.com/user/boxd-office/internal/delivery/http/handler"
	"github.com/user/boxd-office/internal/details"
	"github.com/user/boxd-office/internal/fetch"
	"github.com/user/boxd-office/internal/monitoring"
	"github.com/user/boxd-office/internal/repository"
	"github.com/user/boxd-office/internal/usecase"
	"github.com/user/boxd-office/pkg/logger"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
	scraper  usecase.Scraper
	films    repository.FilmRepository
	checks   map[string]handler.HealthCheck
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
		checks:   map[string]handler.HealthCheck{},
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = monitoring.NewMetrics(a.registry)

	client := fetch.New(fetch.Options{
		Timeout:           cfg.Timeout(),
		MaxRetries:        cfg.MaxRetries,
		BaseDelay:         cfg.RetryBaseDelay(),
		MaxJitter:         cfg.RetryMaxJitter(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, fetch.WithLogger(log), fetch.WithMetrics(a.metrics))

	lists := crawler.New(client, cfg.BaseURL,
		crawler.WithLogger(log),
		crawler.WithMetrics(a.metrics),
		crawler.WithPageDelay(cfg.ListPageDelay()),
	)
	delayMin, delayMax := cfg.DetailDelayWindow()
	fetcher := details.New(client, cfg.BaseURL,
		details.WithLogger(log),
		details.WithCastLimit(cfg.CastLimit),
		details.WithCourtesyDelay(delayMin, delayMax),
	)

	opts := []usecase.ScraperOption{
		usecase.WithDefaults(cfg.ScrapeWorkers, cfg.ListSort),
		usecase.WithScraperLogger(log),
		usecase.WithScraperMetrics(a.metrics),
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisadapter.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		if ttl := cfg.DetailCacheTTL(); ttl > 0 {
			opts = append(opts, usecase.WithDetailCache(redisadapter.NewDetailCache(rdb, cfg.BaseURL), ttl))
		}
		log.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
	}

	if cfg.PostgresURL != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			a.close()
			return nil, err
		}
		a.films = postgres.NewFilmRecordsRepo(pool)
		a.checks["postgres"] = pool.Ping
		opts = append(opts,
			usecase.WithFilmRepository(a.films),
			usecase.WithFailedFetchRepository(postgres.NewFailedFetchRepo(pool)),
		)
		log.Info("postgres connection pool established")
	}

	a.scraper = usecase.NewScraper(lists, fetcher, opts...)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
