package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/user/boxd-office/internal/domain"
)

// Columns is the header written by WriteCSV.
var Columns = []string{
	"title", "liked", "rating", "film_slug", "avg_rating", "num_watched", "num_liked",
	"year", "runtime", "genres", "themes", "directors", "cast", "studios", "countries", "language",
}

var diaryColumns = []string{"date", "name", "year", "rating", "film_slug"}

// WriteCSV writes records with a header row. Absent values are empty cells
// and list values are JSON arrays.
func WriteCSV(w io.Writer, records []domain.FilmRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Title,
			strconv.FormatBool(r.Liked),
			formatFloat(r.Rating),
			r.Slug,
			formatFloat(r.AvgRating),
			formatInt(r.NumWatched),
			formatInt(r.NumLiked),
			formatInt(r.Year),
			formatInt(r.RuntimeMinutes),
		}
		for _, list := range [][]string{r.Genres, r.Themes, r.Directors, r.Cast, r.Studios, r.Countries} {
			cell, err := json.Marshal(orEmpty(list))
			if err != nil {
				return err
			}
			row = append(row, string(cell))
		}
		row = append(row, formatString(r.Language))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV loads records written by WriteCSV. Columns are matched by header
// name, so reordered files load too.
func ReadCSV(r io.Reader) ([]domain.FilmRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.FilmRecord{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	if _, ok := idx["film_slug"]; !ok {
		return nil, errors.New("read header: missing film_slug column")
	}

	out := []domain.FilmRecord{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := parseRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

func parseRow(row []string, idx map[string]int) (domain.FilmRecord, error) {
	cell := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var (
		rec domain.FilmRecord
		err error
	)
	rec.Slug = cell("film_slug")
	rec.Title = cell("title")
	if v := cell("liked"); v != "" {
		if rec.Liked, err = strconv.ParseBool(v); err != nil {
			return rec, fmt.Errorf("liked: %w", err)
		}
	}
	if rec.Rating, err = parseFloat(cell("rating")); err != nil {
		return rec, fmt.Errorf("rating: %w", err)
	}
	if rec.AvgRating, err = parseFloat(cell("avg_rating")); err != nil {
		return rec, fmt.Errorf("avg_rating: %w", err)
	}
	ints := []struct {
		name string
		dst  **int
	}{
		{"num_watched", &rec.NumWatched},
		{"num_liked", &rec.NumLiked},
		{"year", &rec.Year},
		{"runtime", &rec.RuntimeMinutes},
	}
	for _, f := range ints {
		if *f.dst, err = parseInt(cell(f.name)); err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	lists := []struct {
		name string
		dst  *[]string
	}{
		{"genres", &rec.Genres},
		{"themes", &rec.Themes},
		{"directors", &rec.Directors},
		{"cast", &rec.Cast},
		{"studios", &rec.Studios},
		{"countries", &rec.Countries},
	}
	for _, f := range lists {
		if *f.dst, err = parseList(cell(f.name)); err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if v := cell("language"); v != "" {
		rec.Language = &v
	}
	return rec, nil
}

// WriteDiaryCSV writes diary entries with dates as YYYY-MM-DD.
func WriteDiaryCSV(w io.Writer, entries []domain.DiaryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(diaryColumns); err != nil {
		return err
	}
	for _, e := range entries {
		date := ""
		if e.WatchedDate != nil {
			date = e.WatchedDate.Format(time.DateOnly)
		}
		if err := cw.Write([]string{date, e.Title, formatInt(e.Year), formatFloat(e.Rating), e.Slug}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseList(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return orEmpty(out), nil
}
