package repository

import (
	"context"
	"time"

	"github.com/user/boxd-office/internal/domain"
)

// DetailCache keeps recently fetched film details so repeat scrapes skip the
// network.
type DetailCache interface {
	// Get returns the cached record for slug; ok is false on a miss.
	Get(ctx context.Context, slug string) (rec domain.DetailRecord, ok bool, err error)
	// Put stores rec under its slug until ttl elapses.
	Put(ctx context.Context, rec domain.DetailRecord, ttl time.Duration) error
	// Delete drops the cached record for slug, used to force a refetch.
	Delete(ctx context.Context, slug string) error
}
