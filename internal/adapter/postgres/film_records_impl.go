package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/boxd-office/internal/domain"
)

// FilmRecordsRepoImpl implements repository.FilmRepository on PostgreSQL.
type FilmRecordsRepoImpl struct {
	db *pgxpool.Pool
}

func NewFilmRecordsRepo(db *pgxpool.Pool) *FilmRecordsRepoImpl {
	return &FilmRecordsRepoImpl{db: db}
}

const insertFilmRecord = `
	INSERT INTO film_records (
		username, position, film_slug, title, rating, liked, year, runtime_minutes,
		genres, themes, directors, cast_members, studios, countries,
		language, avg_rating, num_watched, num_liked
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

// ReplaceForUser deletes the user's previous rows and batch-inserts the new
// ones inside a single transaction.
func (r *FilmRecordsRepoImpl) ReplaceForUser(ctx context.Context, username string, records []domain.FilmRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM film_records WHERE username = $1`, username); err != nil {
		return err
	}

	if len(records) > 0 {
		batch := &pgx.Batch{}
		for i, rec := range records {
			lists, err := marshalLists(rec)
			if err != nil {
				return fmt.Errorf("encode %s: %w", rec.Slug, err)
			}
			batch.Queue(insertFilmRecord,
				username, i, rec.Slug, rec.Title, rec.Rating, rec.Liked, rec.Year, rec.RuntimeMinutes,
				lists[0], lists[1], lists[2], lists[3], lists[4], lists[5],
				rec.Language, rec.AvgRating, rec.NumWatched, rec.NumLiked,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindByUser returns the user's rows ordered by their listing position.
func (r *FilmRecordsRepoImpl) FindByUser(ctx context.Context, username string) ([]domain.FilmRecord, error) {
	query := `
		SELECT film_slug, title, rating, liked, year, runtime_minutes,
		       genres, themes, directors, cast_members, studios, countries,
		       language, avg_rating, num_watched, num_liked
		FROM film_records
		WHERE username = $1
		ORDER BY position ASC;
	`
	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.FilmRecord{}
	for rows.Next() {
		var (
			rec   domain.FilmRecord
			lists [6][]byte
		)
		if err := rows.Scan(
			&rec.Slug, &rec.Title, &rec.Rating, &rec.Liked, &rec.Year, &rec.RuntimeMinutes,
			&lists[0], &lists[1], &lists[2], &lists[3], &lists[4], &lists[5],
			&rec.Language, &rec.AvgRating, &rec.NumWatched, &rec.NumLiked,
		); err != nil {
			return nil, err
		}
		if err := unmarshalLists(lists, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.Slug, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func listFields(rec *domain.FilmRecord) [6]*[]string {
	return [6]*[]string{&rec.Genres, &rec.Themes, &rec.Directors, &rec.Cast, &rec.Studios, &rec.Countries}
}

func marshalLists(rec domain.FilmRecord) ([6][]byte, error) {
	var out [6][]byte
	for i, f := range listFields(&rec) {
		list := *f
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return out, err
		}
		out[i] = b
	}
	return out, nil
}

func unmarshalLists(raw [6][]byte, rec *domain.FilmRecord) error {
	for i, f := range listFields(rec) {
		var list []string
		if err := json.Unmarshal(raw[i], &list); err != nil {
			return err
		}
		if list == nil {
			list = []string{}
		}
		*f = list
	}
	return nil
}
