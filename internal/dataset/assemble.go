package dataset

import "github.com/user/boxd-office/internal/domain"

// Assemble merges each listing item with its details, in listing order.
// Every item yields exactly one record; a slug without details gets empty
// detail fields. List fields are never nil.
func Assemble(items []domain.ListItem, details map[string]domain.DetailRecord) []domain.FilmRecord {
	out := make([]domain.FilmRecord, 0, len(items))
	for _, it := range items {
		d, ok := details[it.Slug]
		if !ok {
			d = domain.EmptyDetail(it.Slug)
		}
		out = append(out, merge(it, d))
	}
	return out
}

func merge(it domain.ListItem, d domain.DetailRecord) domain.FilmRecord {
	return domain.FilmRecord{
		Slug:           it.Slug,
		Title:          it.Title,
		Rating:         it.Rating,
		Liked:          it.Liked,
		Year:           d.Year,
		RuntimeMinutes: d.RuntimeMinutes,
		Genres:         orEmpty(d.Genres),
		Themes:         orEmpty(d.Themes),
		Directors:      orEmpty(d.Directors),
		Cast:           orEmpty(d.Cast),
		Studios:        orEmpty(d.Studios),
		Countries:      orEmpty(d.Countries),
		Language:       d.Language,
		AvgRating:      d.AvgRating,
		NumWatched:     d.NumWatched,
		NumLiked:       d.NumLiked,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
