package details

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/pkg/utils"
)

const DefaultCastLimit = 12

// PageGetter is the part of the HTTP client the fetcher needs.
type PageGetter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Option func(*Fetcher)

func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithCastLimit keeps the first n billed cast members.
func WithCastLimit(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.castLimit = n
		}
	}
}

// WithCourtesyDelay waits a uniformly random duration in [min, max] after
// the film page and before the auxiliary requests.
func WithCourtesyDelay(min, max time.Duration) Option {
	return func(f *Fetcher) {
		if min < 0 {
			min = 0
		}
		if max < min {
			max = min
		}
		f.delayMin, f.delayMax = min, max
	}
}

// Fetcher builds a DetailRecord from a film page and its auxiliary
// fragments. It holds no per-call state and is safe for concurrent use.
type Fetcher struct {
	client    PageGetter
	baseURL   string
	castLimit int
	delayMin  time.Duration
	delayMax  time.Duration
	logger    *zap.Logger

	film    []Extractor
	ratings []Extractor
	stats   []Extractor
}

func New(client PageGetter, baseURL string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    client,
		baseURL:   baseURL,
		castLimit: DefaultCastLimit,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	f.film = FilmPageExtractors(f.castLimit)
	f.ratings = RatingExtractors()
	f.stats = StatsExtractors()
	return f
}

// Fetch returns the record for slug. The record always carries slug. An
// error means the film page itself failed and the record is empty.
// Failures of the rating or stats fragments leave their fields unset and
// mark the record Partial.
func (f *Fetcher) Fetch(ctx context.Context, slug string) (domain.DetailRecord, error) {
	rec := domain.EmptyDetail(slug)
	esc := url.PathEscape(slug)

	doc, err := f.document(ctx, fmt.Sprintf("/film/%s/", esc))
	if err != nil {
		return rec, fmt.Errorf("film %s: %w", slug, err)
	}
	f.apply(doc, &rec, f.film)

	if err := sleep(ctx, f.courtesyDelay()); err != nil {
		rec.Partial = true
		return rec, nil
	}

	histOK := f.auxiliary(ctx, &rec, fmt.Sprintf("/csi/film/%s/rating-histogram/", esc), f.ratings)
	statsOK := f.auxiliary(ctx, &rec, fmt.Sprintf("/csi/film/%s/stats/", esc), f.stats)
	rec.Partial = !histOK || !statsOK
	return rec, nil
}

func (f *Fetcher) auxiliary(ctx context.Context, rec *domain.DetailRecord, path string, extractors []Extractor) bool {
	if ctx.Err() != nil {
		return false
	}
	doc, err := f.document(ctx, path)
	if err != nil {
		f.logger.Warn("auxiliary page failed", zap.String("slug", rec.Slug), zap.String("path", path), zap.Error(err))
		return false
	}
	f.apply(doc, rec, extractors)
	return true
}

func (f *Fetcher) apply(doc *goquery.Document, rec *domain.DetailRecord, extractors []Extractor) {
	for _, e := range extractors {
		if !e.Extract(doc, rec) {
			f.logger.Debug("field not found", zap.String("slug", rec.Slug), zap.String("field", e.Field()))
		}
	}
}

func (f *Fetcher) document(ctx context.Context, path string) (*goquery.Document, error) {
	pageURL, err := utils.JoinPath(f.baseURL, path)
	if err != nil {
		return nil, err
	}
	body, err := f.client.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func (f *Fetcher) courtesyDelay() time.Duration {
	if f.delayMax <= f.delayMin {
		return f.delayMin
	}
	return f.delayMin + time.Duration(rand.Int64N(int64(f.delayMax-f.delayMin)+1))
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
