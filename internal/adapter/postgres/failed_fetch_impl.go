package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/boxd-office/internal/domain"
)

// FailedFetchRepoImpl implements repository.FailedFetchRepository on PostgreSQL.
type FailedFetchRepoImpl struct {
	db *pgxpool.Pool
}

func NewFailedFetchRepo(db *pgxpool.Pool) *FailedFetchRepoImpl {
	return &FailedFetchRepoImpl{db: db}
}

// SaveOrUpdate creates or updates a failure record.
// It increments the retry_count on conflict.
func (r *FailedFetchRepoImpl) SaveOrUpdate(ctx context.Context, f *domain.FailedFetch) error {
	query := `
		INSERT INTO failed_fetches (username, film_slug, failure_reason, http_status_code, last_attempt_timestamp, retry_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (username, film_slug) DO UPDATE SET
			failure_reason = EXCLUDED.failure_reason,
			http_status_code = EXCLUDED.http_status_code,
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp,
			retry_count = failed_fetches.retry_count + 1;
	`
	_, err := r.db.Exec(ctx, query,
		f.Username,
		f.Slug,
		f.FailureReason,
		f.HTTPStatusCode,
		f.LastAttemptTimestamp,
	)
	return err
}

func (r *FailedFetchRepoImpl) FindByUser(ctx context.Context, username string) ([]*domain.FailedFetch, error) {
	query := `
		SELECT username, film_slug, failure_reason, http_status_code, last_attempt_timestamp, retry_count
		FROM failed_fetches
		WHERE username = $1
		ORDER BY last_attempt_timestamp ASC;
	`
	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FailedFetch
	for rows.Next() {
		var f domain.FailedFetch
		if err := rows.Scan(
			&f.Username,
			&f.Slug,
			&f.FailureReason,
			&f.HTTPStatusCode,
			&f.LastAttemptTimestamp,
			&f.RetryCount,
		); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// Delete removes a failure record, typically after a successful fetch.
func (r *FailedFetchRepoImpl) Delete(ctx context.Context, username, slug string) error {
	query := `DELETE FROM failed_fetches WHERE username = $1 AND film_slug = $2;`
	_, err := r.db.Exec(ctx, query, username, slug)
	return err
}
