package aggregator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/internal/monitoring"
)

const DefaultWorkers = 10

// DetailFunc fetches the detail record for one slug.
type DetailFunc func(ctx context.Context, slug string) (domain.DetailRecord, error)

// ProgressFunc receives (completed, total) counts. Calls are serialized and
// completed never decreases.
type ProgressFunc func(completed, total int)

// Failure is a slug whose details could not be fetched.
type Failure struct {
	Slug string
	Err  error
}

// Result holds one record per unique input slug.
type Result struct {
	Details  map[string]domain.DetailRecord
	Failures []Failure
}

type Option func(*Aggregator)

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithProgress(fn ProgressFunc) Option {
	return func(a *Aggregator) { a.progress = fn }
}

// Aggregator fans detail fetches out over a fixed number of workers.
type Aggregator struct {
	workers  int
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	progress ProgressFunc
}

func New(workers int, opts ...Option) *Aggregator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	a := &Aggregator{workers: workers, logger: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate runs fn once per unique slug in items and returns every result
// keyed by slug. A failed or panicking fetch stores an empty record for its
// slug without affecting the others. If ctx is cancelled, slugs not yet
// handed to a worker are stored as empty records too.
func (a *Aggregator) Aggregate(ctx context.Context, items []domain.ListItem, fn DetailFunc) *Result {
	slugs := uniqueSlugs(items)
	total := len(slugs)
	details := NewDetailMap(total)

	var (
		failMu   sync.Mutex
		failures []Failure
		done     atomic.Int64
	)
	fail := func(slug string, err error) {
		failMu.Lock()
		failures = append(failures, Failure{Slug: slug, Err: err})
		failMu.Unlock()
	}

	ticks := make(chan struct{}, 1)
	reporterDone := make(chan struct{})
	go a.report(ticks, reporterDone, &done, total)
	tick := func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}

	workers := a.workers
	if workers > total {
		workers = total
	}
	jobs := make(chan string, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slug := range jobs {
				rec, err := a.process(ctx, slug, fn)
				if err != nil {
					fail(slug, err)
				}
				details.Store(rec)
				done.Add(1)
				tick()
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, slug := range slugs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- slug:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	if rest := slugs[dispatched:]; len(rest) > 0 {
		a.logger.Warn("aggregation cancelled", zap.Int("skipped", len(rest)), zap.Error(ctx.Err()))
		for _, slug := range rest {
			details.Store(domain.EmptyDetail(slug))
			fail(slug, ctx.Err())
		}
		done.Add(int64(len(rest)))
	}

	close(ticks)
	<-reporterDone

	a.logger.Info("details aggregated",
		zap.Int("total", total),
		zap.Int("failed", len(failures)),
		zap.Int("workers", workers),
	)
	return &Result{Details: details.Snapshot(), Failures: failures}
}

func (a *Aggregator) process(ctx context.Context, slug string, fn DetailFunc) (rec domain.DetailRecord, err error) {
	start := time.Now()
	a.metrics.DetailStarted()
	defer a.metrics.DetailFinished()

	defer func() {
		if r := recover(); r != nil {
			a.metrics.ObserveDetail("panic", time.Since(start))
			a.metrics.IncErrorsTotal("detail_panic")
			a.logger.Error("detail fetch panicked", zap.String("slug", slug), zap.Any("panic", r))
			rec, err = domain.EmptyDetail(slug), fmt.Errorf("detail fetch panicked: %v", r)
		}
	}()

	rec, err = fn(ctx, slug)
	if err != nil {
		a.metrics.ObserveDetail("failed", time.Since(start))
		a.logger.Warn("detail fetch failed", zap.String("slug", slug), zap.Error(err))
		return domain.EmptyDetail(slug), err
	}
	a.metrics.ObserveDetail("ok", time.Since(start))
	rec.Slug = slug
	return rec, nil
}

func (a *Aggregator) report(ticks <-chan struct{}, finished chan<- struct{}, done *atomic.Int64, total int) {
	defer close(finished)
	last := -1
	for range ticks {
		n := int(done.Load())
		if a.progress != nil && n != last {
			a.progress(n, total)
		}
		last = n
	}
	if a.progress != nil && last != total {
		a.progress(total, total)
	}
}

func uniqueSlugs(items []domain.ListItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Slug == "" {
			continue
		}
		if _, ok := seen[it.Slug]; ok {
			continue
		}
		seen[it.Slug] = struct{}{}
		out = append(out, it.Slug)
	}
	return out
}
