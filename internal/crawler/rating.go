package crawler

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// starRatings maps the glyph text of a rating span to its value.
var starRatings = map[string]float64{
	"½":     0.5,
	"★":     1,
	"★½":    1.5,
	"★★":    2,
	"★★½":   2.5,
	"★★★":   3,
	"★★★½":  3.5,
	"★★★★":  4,
	"★★★★½": 4.5,
	"★★★★★": 5,
}

// StarRating converts star glyph text to a rating. Empty or unknown text
// yields nil: an unrated film has no rating, not a zero rating.
func StarRating(text string) *float64 {
	v, ok := starRatings[strings.TrimSpace(text)]
	if !ok {
		return nil
	}
	return &v
}

// ratingFromSelection reads a rating span, falling back to its "rated-N"
// class (N is the rating in half stars) when the glyphs are missing.
func ratingFromSelection(s *goquery.Selection) *float64 {
	if s.Length() == 0 {
		return nil
	}
	if r := StarRating(s.Text()); r != nil {
		return r
	}
	class, _ := s.Attr("class")
	for _, c := range strings.Fields(class) {
		n, ok := strings.CutPrefix(c, "rated-")
		if !ok {
			continue
		}
		halves, err := strconv.Atoi(n)
		if err != nil || halves < 1 || halves > 10 {
			return nil
		}
		v := float64(halves) / 2
		return &v
	}
	return nil
}
