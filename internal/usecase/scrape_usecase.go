package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/aggregator"
	"github.com/user/boxd-office/internal/crawler"
	"github.com/user/boxd-office/internal/dataset"
	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/internal/fetch"
	"github.com/user/boxd-office/internal/monitoring"
	"github.com/user/boxd-office/internal/repository"
)

var ErrInvalidUsername = errors.New("username is required")

// ListCrawler enumerates a user's listings.
type ListCrawler interface {
	Crawl(ctx context.Context, username string, opts crawler.Options) ([]domain.ListItem, error)
	CrawlDiary(ctx context.Context, username string, opts crawler.Options) ([]domain.DiaryEntry, error)
}

// DetailFetcher loads the details of one film.
type DetailFetcher interface {
	Fetch(ctx context.Context, slug string) (domain.DetailRecord, error)
}

// ScrapeOptions tunes a single scrape.
type ScrapeOptions struct {
	// Concurrency is the detail worker count; 0 uses the configured default.
	Concurrency int
	// MaxPages limits the listing crawl; 0 means all pages.
	MaxPages int
	// Refresh bypasses the detail cache.
	Refresh  bool
	Progress aggregator.ProgressFunc
}

// Scraper produces a user's film history.
type Scraper interface {
	// Scrape returns one record per listed film in listing order. Only a
	// failure to load the listing at all is returned as an error; detail
	// failures degrade to records with empty detail fields.
	Scrape(ctx context.Context, username string, opts ScrapeOptions) ([]domain.FilmRecord, error)
	// Diary returns the user's logged viewings, newest first.
	Diary(ctx context.Context, username string, maxPages int) ([]domain.DiaryEntry, error)
}

type ScraperOption func(*scrapeUseCase)

func WithDetailCache(cache repository.DetailCache, ttl time.Duration) ScraperOption {
	return func(uc *scrapeUseCase) {
		uc.cache = cache
		uc.cacheTTL = ttl
	}
}

func WithFilmRepository(films repository.FilmRepository) ScraperOption {
	return func(uc *scrapeUseCase) { uc.films = films }
}

func WithFailedFetchRepository(failed repository.FailedFetchRepository) ScraperOption {
	return func(uc *scrapeUseCase) { uc.failed = failed }
}

func WithScraperLogger(l *zap.Logger) ScraperOption {
	return func(uc *scrapeUseCase) {
		if l != nil {
			uc.logger = l
		}
	}
}

func WithScraperMetrics(m *monitoring.Metrics) ScraperOption {
	return func(uc *scrapeUseCase) { uc.metrics = m }
}

// WithDefaults sets the worker count and listing order used when a call
// does not specify them.
func WithDefaults(concurrency int, sort string) ScraperOption {
	return func(uc *scrapeUseCase) {
		uc.concurrency = concurrency
		uc.sort = sort
	}
}

type scrapeUseCase struct {
	lists       ListCrawler
	details     DetailFetcher
	cache       repository.DetailCache
	cacheTTL    time.Duration
	films       repository.FilmRepository
	failed      repository.FailedFetchRepository
	concurrency int
	sort        string
	logger      *zap.Logger
	metrics     *monitoring.Metrics
}

// NewScraper wires the crawl, detail and storage stages together. The cache
// and repositories are optional.
func NewScraper(lists ListCrawler, details DetailFetcher, opts ...ScraperOption) Scraper {
	uc := &scrapeUseCase{
		lists:       lists,
		details:     details,
		concurrency: aggregator.DefaultWorkers,
		sort:        crawler.DefaultSort,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

func (uc *scrapeUseCase) Scrape(ctx context.Context, username string, opts ScrapeOptions) ([]domain.FilmRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	start := time.Now()

	items, err := uc.lists.Crawl(ctx, username, crawler.Options{MaxPages: opts.MaxPages, Sort: uc.sort})
	if err != nil {
		return nil, fmt.Errorf("crawl %s: %w", username, err)
	}
	uc.logger.Info("listing crawled", zap.String("user", username), zap.Int("films", len(items)))

	workers := opts.Concurrency
	if workers <= 0 {
		workers = uc.concurrency
	}
	agg := aggregator.New(workers,
		aggregator.WithLogger(uc.logger),
		aggregator.WithMetrics(uc.metrics),
		aggregator.WithProgress(opts.Progress),
	)
	res := agg.Aggregate(ctx, items, uc.detailFunc(opts.Refresh))
	records := dataset.Assemble(items, res.Details)

	if err := ctx.Err(); err != nil {
		uc.logger.Warn("scrape cancelled, results not stored", zap.String("user", username), zap.Error(err))
		return records, err
	}

	uc.recordFailures(ctx, username, res)
	if uc.films != nil {
		if err := uc.films.ReplaceForUser(ctx, username, records); err != nil {
			uc.metrics.IncErrorsTotal("store_failed")
			uc.logger.Error("failed to store films", zap.String("user", username), zap.Error(err))
		}
	}

	if n := rateLimited(res.Failures); n > 0 {
		uc.logger.Warn("detail fetches were rate limited, consider lowering concurrency",
			zap.String("user", username),
			zap.Int("rate_limited", n),
			zap.Int("workers", workers),
		)
	}
	uc.logger.Info("scrape finished",
		zap.String("user", username),
		zap.Int("films", len(records)),
		zap.Int("failed_details", len(res.Failures)),
		zap.Duration("duration", time.Since(start)),
	)
	return records, nil
}

func (uc *scrapeUseCase) Diary(ctx context.Context, username string, maxPages int) ([]domain.DiaryEntry, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}
	entries, err := uc.lists.CrawlDiary(ctx, username, crawler.Options{MaxPages: maxPages})
	if err != nil {
		return nil, fmt.Errorf("crawl diary %s: %w", username, err)
	}
	return entries, nil
}

// detailFunc serves details from the cache when possible and caches fresh
// records that are neither empty nor partial. A refresh drops the cached
// entry before refetching.
func (uc *scrapeUseCase) detailFunc(refresh bool) aggregator.DetailFunc {
	return func(ctx context.Context, slug string) (domain.DetailRecord, error) {
		if uc.cache != nil {
			if refresh {
				if err := uc.cache.Delete(ctx, slug); err != nil {
					uc.logger.Warn("detail cache delete failed", zap.String("slug", slug), zap.Error(err))
				}
			} else {
				rec, ok, err := uc.cache.Get(ctx, slug)
				switch {
				case err != nil:
					uc.logger.Warn("detail cache read failed", zap.String("slug", slug), zap.Error(err))
				case ok:
					uc.metrics.ObserveDetail("cached", 0)
					return rec, nil
				}
			}
		}

		rec, err := uc.details.Fetch(ctx, slug)
		if err != nil {
			return rec, err
		}
		if rec.Partial {
			uc.metrics.IncErrorsTotal("detail_partial")
			return rec, nil
		}
		if uc.cache != nil && !rec.IsEmpty() {
			if err := uc.cache.Put(ctx, rec, uc.cacheTTL); err != nil {
				uc.logger.Warn("detail cache write failed", zap.String("slug", slug), zap.Error(err))
			}
		}
		return rec, nil
	}
}

// recordFailures upserts this run's failures and clears earlier ones for
// films that were fetched successfully this time.
func (uc *scrapeUseCase) recordFailures(ctx context.Context, username string, res *aggregator.Result) {
	if uc.failed == nil {
		return
	}
	failedNow := make(map[string]struct{}, len(res.Failures))
	now := time.Now().UTC()
	for _, f := range res.Failures {
		failedNow[f.Slug] = struct{}{}
		rec := &domain.FailedFetch{
			Username:             username,
			Slug:                 f.Slug,
			FailureReason:        f.Err.Error(),
			HTTPStatusCode:       fetch.StatusCode(f.Err),
			LastAttemptTimestamp: now,
		}
		if err := uc.failed.SaveOrUpdate(ctx, rec); err != nil {
			uc.logger.Error("failed to record failed fetch", zap.String("slug", f.Slug), zap.Error(err))
		}
	}

	previous, err := uc.failed.FindByUser(ctx, username)
	if err != nil {
		uc.logger.Warn("failed to load previous failures", zap.String("user", username), zap.Error(err))
		return
	}
	for _, p := range previous {
		if _, still := failedNow[p.Slug]; still {
			continue
		}
		if _, scraped := res.Details[p.Slug]; !scraped {
			continue
		}
		if err := uc.failed.Delete(ctx, username, p.Slug); err != nil {
			uc.logger.Warn("failed to clear recovered fetch", zap.String("slug", p.Slug), zap.Error(err))
		}
	}
}

func rateLimited(failures []aggregator.Failure) int {
	n := 0
	for _, f := range failures {
		if fetch.IsRateLimited(f.Err) {
			n++
		}
	}
	return n
}
