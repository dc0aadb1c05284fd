package usecase

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/user/boxd-office/internal/crawler"
	"github.com/user/boxd-office/internal/domain"
)

type stubLists struct {
	mu      sync.Mutex
	items   []domain.ListItem
	diary   []domain.DiaryEntry
	err     error
	gotOpts crawler.Options
	block   chan struct{}
}

func (s *stubLists) Crawl(ctx context.Context, username string, opts crawler.Options) ([]domain.ListItem, error) {
	s.mu.Lock()
	s.gotOpts = opts
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return []domain.ListItem{}, ctx.Err()
		}
	}
	if s.err != nil {
		return []domain.ListItem{}, s.err
	}
	return s.items, nil
}

func (s *stubLists) CrawlDiary(ctx context.Context, username string, opts crawler.Options) ([]domain.DiaryEntry, error) {
	s.mu.Lock()
	s.gotOpts = opts
	s.mu.Unlock()
	return s.diary, s.err
}

type stubDetails struct {
	mu    sync.Mutex
	recs  map[string]domain.DetailRecord
	errs  map[string]error
	calls map[string]int
	// jitter, when set, delays each call by a random duration up to it.
	jitter time.Duration
}

func newStubDetails() *stubDetails {
	return &stubDetails{
		recs:  map[string]domain.DetailRecord{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (s *stubDetails) Fetch(ctx context.Context, slug string) (domain.DetailRecord, error) {
	if s.jitter > 0 {
		time.Sleep(rand.N(s.jitter))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[slug]++
	if err := s.errs[slug]; err != nil {
		return domain.EmptyDetail(slug), err
	}
	if rec, ok := s.recs[slug]; ok {
		return rec, nil
	}
	return domain.EmptyDetail(slug), nil
}

func (s *stubDetails) callCount(slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[slug]
}

type memCache struct {
	mu      sync.Mutex
	recs    map[string]domain.DetailRecord
	ttls    map[string]time.Duration
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{recs: map[string]domain.DetailRecord{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(ctx context.Context, slug string) (domain.DetailRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.recs[slug]
	return rec, ok, nil
}

func (c *memCache) has(slug string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.recs[slug]
	return ok
}

func (c *memCache) Put(ctx context.Context, rec domain.DetailRecord, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs[rec.Slug] = rec
	c.ttls[rec.Slug] = ttl
	return nil
}

func (c *memCache) Delete(ctx context.Context, slug string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.recs, slug)
	c.deleted = append(c.deleted, slug)
	return nil
}

type memFilms struct {
	mu    sync.Mutex
	users map[string][]domain.FilmRecord
	err   error
}

func newMemFilms() *memFilms { return &memFilms{users: map[string][]domain.FilmRecord{}} }

func (f *memFilms) ReplaceForUser(ctx context.Context, username string, records []domain.FilmRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.users[username] = append([]domain.FilmRecord(nil), records...)
	return nil
}

func (f *memFilms) FindByUser(ctx context.Context, username string) ([]domain.FilmRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if recs, ok := f.users[username]; ok {
		return recs, nil
	}
	return []domain.FilmRecord{}, nil
}

type memFailed struct {
	mu   sync.Mutex
	rows map[string]*domain.FailedFetch
}

func newMemFailed() *memFailed { return &memFailed{rows: map[string]*domain.FailedFetch{}} }

func (m *memFailed) SaveOrUpdate(ctx context.Context, f *domain.FailedFetch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := f.Username + "/" + f.Slug
	if prev, ok := m.rows[key]; ok {
		cp := *f
		cp.RetryCount = prev.RetryCount + 1
		m.rows[key] = &cp
		return nil
	}
	cp := *f
	cp.RetryCount = 1
	m.rows[key] = &cp
	return nil
}

func (m *memFailed) FindByUser(ctx context.Context, username string) ([]*domain.FailedFetch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FailedFetch
	for _, f := range m.rows {
		if f.Username == username {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFailed) Delete(ctx context.Context, username, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, username+"/"+slug)
	return nil
}

func (m *memFailed) get(username, slug string) *domain.FailedFetch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[username+"/"+slug]
}
