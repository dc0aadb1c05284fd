package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/internal/repository"
)

var (
	ErrJobRunning   = errors.New("a scrape for this user is already running")
	ErrJobNotFound  = errors.New("job not found")
	ErrNoStore      = errors.New("no film store configured")
	ErrShuttingDown = errors.New("job manager is shutting down")
)

// JobManager runs scrapes in the background and tracks their progress.
type JobManager struct {
	scraper Scraper
	films   repository.FilmRepository
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*domain.JobStatus
	active map[string]string // username -> job id
	closed bool
}

// NewJobManager creates a manager; films may be nil when nothing is persisted.
func NewJobManager(scraper Scraper, films repository.FilmRepository, logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		scraper: scraper,
		films:   films,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*domain.JobStatus),
		active:  make(map[string]string),
	}
}

// Submit starts a scrape for username and returns its job id.
func (m *JobManager) Submit(username string, concurrency, maxPages int) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidUsername
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrShuttingDown
	}
	if id, ok := m.active[username]; ok {
		return id, ErrJobRunning
	}

	id := uuid.NewString()
	m.jobs[id] = &domain.JobStatus{
		ID:        id,
		Username:  username,
		State:     domain.JobPending,
		StartedAt: time.Now().UTC(),
	}
	m.active[username] = id

	m.wg.Add(1)
	go m.run(id, username, ScrapeOptions{Concurrency: concurrency, MaxPages: maxPages})

	m.logger.Info("scrape job submitted", zap.String("job_id", id), zap.String("user", username))
	return id, nil
}

func (m *JobManager) run(id, username string, opts ScrapeOptions) {
	defer m.wg.Done()
	m.update(id, func(s *domain.JobStatus) { s.State = domain.JobRunning })

	opts.Progress = func(completed, total int) {
		m.update(id, func(s *domain.JobStatus) {
			s.Completed = completed
			s.Total = total
		})
	}
	records, err := m.scraper.Scrape(m.ctx, username, opts)

	finished := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, username)
	s := m.jobs[id]
	s.FinishedAt = &finished
	if err != nil {
		s.State = domain.JobFailed
		s.Error = err.Error()
		m.logger.Warn("scrape job failed", zap.String("job_id", id), zap.String("user", username), zap.Error(err))
		return
	}
	s.State = domain.JobCompleted
	s.Films = len(records)
	m.logger.Info("scrape job completed", zap.String("job_id", id), zap.String("user", username), zap.Int("films", len(records)))
}

func (m *JobManager) update(id string, fn func(*domain.JobStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.jobs[id]; ok {
		fn(s)
	}
}

// Status returns a snapshot of the job.
func (m *JobManager) Status(id string) (domain.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.jobs[id]
	if !ok {
		return domain.JobStatus{}, ErrJobNotFound
	}
	return *s, nil
}

// Films returns the stored dataset of username.
func (m *JobManager) Films(ctx context.Context, username string) ([]domain.FilmRecord, error) {
	if m.films == nil {
		return nil, ErrNoStore
	}
	return m.films.FindByUser(ctx, strings.TrimSpace(username))
}

// Shutdown cancels running jobs and waits for them until ctx expires.
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
