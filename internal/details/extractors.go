package details

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/boxd-office/internal/domain"
)

// Extractor fills one field of a DetailRecord. Extract reports false when
// the markup it relies on is missing; the field is then left untouched.
type Extractor interface {
	Field() string
	Extract(doc *goquery.Document, rec *domain.DetailRecord) bool
}

type extractorFunc struct {
	field string
	fn    func(doc *goquery.Document, rec *domain.DetailRecord) bool
}

func (e extractorFunc) Field() string { return e.field }

func (e extractorFunc) Extract(doc *goquery.Document, rec *domain.DetailRecord) bool {
	return e.fn(doc, rec)
}

func newExtractor(field string, fn func(doc *goquery.Document, rec *domain.DetailRecord) bool) Extractor {
	return extractorFunc{field: field, fn: fn}
}

// FilmPageExtractors read the primary film page.
func FilmPageExtractors(castLimit int) []Extractor {
	return []Extractor{
		newExtractor("year", extractYear),
		newExtractor("runtime", extractRuntime),
		newExtractor("genres", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.Genres = linkTexts(doc.Find("#tab-genres"), 0, "/films/genre/")
			return len(rec.Genres) > 0
		}),
		newExtractor("themes", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.Themes = linkTexts(doc.Find("#tab-genres"), 0, "/films/theme/", "/films/mini-theme/")
			return len(rec.Themes) > 0
		}),
		newExtractor("directors", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.Directors = linkTexts(doc.Find("#tab-crew"), 0, "/director/")
			return len(rec.Directors) > 0
		}),
		newExtractor("cast", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.Cast = linkTexts(doc.Find("#tab-cast"), castLimit, "/actor/")
			return len(rec.Cast) > 0
		}),
		newExtractor("studios", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.Studios = linkTexts(doc.Find("#tab-details"), 0, "/studio/")
			return len(rec.Studios) > 0
		}),
		newExtractor("countries", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.Countries = linkTexts(doc.Find("#tab-details"), 0, "/films/country/")
			return len(rec.Countries) > 0
		}),
		newExtractor("language", extractLanguage),
	}
}

// RatingExtractors read the rating histogram fragment.
func RatingExtractors() []Extractor {
	return []Extractor{
		newExtractor("avg_rating", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			a := doc.Find("a.display-rating, span.display-rating").First()
			if a.Length() == 0 {
				return false
			}
			v, ok := parseAverage(a.AttrOr("title", ""), a.Text())
			if !ok {
				return false
			}
			rec.AvgRating = &v
			return true
		}),
	}
}

// StatsExtractors read the member statistics fragment.
func StatsExtractors() []Extractor {
	return []Extractor{
		newExtractor("num_watched", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.NumWatched = statCount(doc, ".icon-watched, .-watches")
			return rec.NumWatched != nil
		}),
		newExtractor("num_liked", func(doc *goquery.Document, rec *domain.DetailRecord) bool {
			rec.NumLiked = statCount(doc, ".icon-liked, .-likes")
			return rec.NumLiked != nil
		}),
	}
}

func extractYear(doc *goquery.Document, rec *domain.DetailRecord) bool {
	candidates := []string{
		strings.TrimSpace(doc.Find("section.production-masthead .releaseyear a, .productioninfo .releasedate a").First().Text()),
		strings.TrimSpace(doc.Find(`a[href*="/films/year/"]`).First().Text()),
	}
	for _, c := range candidates {
		if len(c) == 4 {
			if y, err := strconv.Atoi(c); err == nil {
				rec.Year = &y
				return true
			}
		}
	}
	title := doc.Find(`meta[property="og:title"]`).AttrOr("content", "")
	if m := yearToken.FindStringSubmatch(title); m != nil {
		y, _ := strconv.Atoi(m[1])
		rec.Year = &y
		return true
	}
	return false
}

func extractRuntime(doc *goquery.Document, rec *domain.DetailRecord) bool {
	p := doc.Find("p.text-link.text-footer").First()
	if p.Length() == 0 {
		p = doc.Find("p.text-link").First()
	}
	n, ok := firstInt(p.Text())
	if !ok || n <= 0 {
		return false
	}
	rec.RuntimeMinutes = &n
	return true
}

func extractLanguage(doc *goquery.Document, rec *domain.DetailRecord) bool {
	var lang string
	doc.Find("#tab-details h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(h.Text(), "Language") {
			return true
		}
		lang = normSpace(h.Next().Find("a").First().Text())
		return false
	})
	if lang == "" {
		lang = normSpace(doc.Find(`a[href*="/films/language/"]`).First().Text())
	}
	if lang == "" {
		return false
	}
	rec.Language = &lang
	return true
}

// linkTexts collects the text of links under scope whose href contains any
// of the fragments, keeping at most limit values when limit > 0.
func linkTexts(scope *goquery.Selection, limit int, fragments ...string) []string {
	var out []string
	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		for _, f := range fragments {
			if strings.Contains(href, f) {
				out = append(out, a.Text())
				return
			}
		}
	})
	out = normList(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func statCount(doc *goquery.Document, selector string) *int {
	s := doc.Find(selector).First()
	if s.Length() == 0 {
		return nil
	}
	if n := ParseCount(s.AttrOr("title", "")); n != nil {
		return n
	}
	if n := ParseCount(s.AttrOr("data-original-title", "")); n != nil {
		return n
	}
	return ParseCount(s.Text())
}
