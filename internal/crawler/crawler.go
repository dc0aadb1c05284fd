package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/internal/fetch"
	"github.com/user/boxd-office/internal/monitoring"
	"github.com/user/boxd-office/pkg/utils"
)

// ErrFirstPage marks a crawl that could not load its first page, so nothing
// was discovered.
var ErrFirstPage = errors.New("first listing page failed")

const DefaultSort = "date-earliest"

// PageGetter is the part of the HTTP client the crawler needs. Non-2xx
// answers come back as *fetch.HTTPStatusError.
type PageGetter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options bounds a single crawl.
type Options struct {
	// MaxPages stops the crawl after this many pages; 0 means no limit.
	MaxPages int
	// Sort is the listing order path segment, e.g. "date-earliest".
	Sort string
}

type Option func(*Crawler)

func WithLogger(l *zap.Logger) Option {
	return func(c *Crawler) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithPageDelay sleeps between consecutive page requests.
func WithPageDelay(d time.Duration) Option {
	return func(c *Crawler) { c.pageDelay = d }
}

// Crawler walks paginated user listings. Pages are fetched strictly in order
// since whether page N+1 exists depends on page N.
type Crawler struct {
	client    PageGetter
	baseURL   string
	pageDelay time.Duration
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

func New(client PageGetter, baseURL string, opts ...Option) *Crawler {
	c := &Crawler{
		client:  client,
		baseURL: baseURL,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Crawl returns every film in the user's listing in presentation order.
// A failed first page yields an empty slice and an error wrapping
// ErrFirstPage; failures on later pages end the crawl with what was found.
func (c *Crawler) Crawl(ctx context.Context, username string, opts Options) ([]domain.ListItem, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return []domain.ListItem{}, fmt.Errorf("%w: username is empty", ErrFirstPage)
	}
	sort := opts.Sort
	if sort == "" {
		sort = DefaultSort
	}
	first := fmt.Sprintf("/%s/films/by/%s/", url.PathEscape(username), url.PathEscape(sort))

	items := make([]domain.ListItem, 0, 72)
	seen := make(map[string]struct{})

	for page := 1; ; page++ {
		path := first
		if page > 1 {
			path = fmt.Sprintf("%spage/%d/", first, page)
		}
		pageURL, err := utils.JoinPath(c.baseURL, path)
		if err != nil {
			return []domain.ListItem{}, fmt.Errorf("%w: %v", ErrFirstPage, err)
		}

		body, err := c.getPage(ctx, pageURL)
		if err != nil {
			if page == 1 {
				c.metrics.IncErrorsTotal("crawl_failed")
				c.logger.Error("first listing page failed", zap.String("user", username), zap.String("url", pageURL), zap.Error(err))
				return []domain.ListItem{}, fmt.Errorf("%w: %w", ErrFirstPage, err)
			}
			c.logger.Warn("listing page failed, ending crawl", zap.String("url", pageURL), zap.Int("page", page), zap.Error(err))
			return items, nil
		}

		parsed, err := parseListPage(body)
		if err != nil {
			c.logger.Warn("listing page unparseable, ending crawl", zap.String("url", pageURL), zap.Error(err))
			if page == 1 {
				return []domain.ListItem{}, fmt.Errorf("%w: %w", ErrFirstPage, err)
			}
			return items, nil
		}
		for _, s := range parsed.skipped {
			c.logger.Warn("skipping listing entry", zap.String("url", pageURL), zap.Int("index", s.index), zap.Error(s.err))
		}
		if len(parsed.items) == 0 {
			c.metrics.IncListPage("empty")
			c.logger.Debug("no parseable entries, crawl complete", zap.Int("page", page), zap.Int("entries", parsed.entries))
			return items, nil
		}
		c.metrics.IncListPage("items")

		for _, it := range parsed.items {
			if _, dup := seen[it.Slug]; dup {
				continue
			}
			seen[it.Slug] = struct{}{}
			items = append(items, it)
		}
		c.logger.Info("listing page crawled",
			zap.String("user", username),
			zap.Int("page", page),
			zap.Int("entries", parsed.entries),
			zap.Int("total", len(items)),
		)

		if !parsed.hasNext {
			return items, nil
		}
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			return items, nil
		}
		if err := sleep(ctx, c.pageDelay); err != nil {
			return items, nil
		}
	}
}

func (c *Crawler) getPage(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := c.client.Fetch(ctx, pageURL)
	if err != nil {
		var se *fetch.HTTPStatusError
		if errors.As(err, &se) {
			c.metrics.IncListPage("status")
		}
		return nil, err
	}
	return body, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
