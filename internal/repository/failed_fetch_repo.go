package repository

import (
	"context"

	"github.com/user/boxd-office/internal/domain"
)

// FailedFetchRepository tracks films whose details could not be fetched.
type FailedFetchRepository interface {
	// SaveOrUpdate creates or updates a failure record, incrementing its retry count.
	SaveOrUpdate(ctx context.Context, f *domain.FailedFetch) error
	// FindByUser lists the failures recorded for a user's scrapes.
	FindByUser(ctx context.Context, username string) ([]*domain.FailedFetch, error)
	// Delete removes a failure record, typically after a successful fetch.
	Delete(ctx context.Context, username, slug string) error
}
