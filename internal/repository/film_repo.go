package repository

import (
	"context"

	"github.com/user/boxd-office/internal/domain"
)

// FilmRepository stores the assembled dataset of each user.
type FilmRepository interface {
	// ReplaceForUser atomically swaps the user's stored films for records,
	// keeping their order.
	ReplaceForUser(ctx context.Context, username string, records []domain.FilmRecord) error
	// FindByUser returns the user's films in listing order, or an empty slice.
	FindByUser(ctx context.Context, username string) ([]domain.FilmRecord, error)
}
