package crawler

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/boxd-office/internal/domain"
)

var errNoSlug = errors.New("film slug not found")

const entrySelector = "li.poster-container, li.griditem"

// listPage is the parsed form of one films listing page.
type listPage struct {
	entries int // entries found, including the ones that failed to parse
	items   []domain.ListItem
	skipped []skippedEntry
	hasNext bool
}

type skippedEntry struct {
	index int
	err   error
}

func parseListPage(body []byte) (*listPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &listPage{hasNext: hasNextPage(doc)}
	doc.Find(entrySelector).Each(func(i int, s *goquery.Selection) {
		page.entries++
		item, err := parseListEntry(s)
		if err != nil {
			page.skipped = append(page.skipped, skippedEntry{index: i, err: err})
			return
		}
		page.items = append(page.items, item)
	})
	return page, nil
}

func parseListEntry(s *goquery.Selection) (domain.ListItem, error) {
	slug := slugFrom(s)
	if slug == "" {
		return domain.ListItem{}, errNoSlug
	}

	title := strings.TrimSpace(s.Find("img").First().AttrOr("alt", ""))
	if title == "" {
		title = strings.TrimSpace(s.Find("[data-item-name]").First().AttrOr("data-item-name", ""))
	}
	if title == "" {
		title = strings.TrimSpace(s.Find("[data-film-name]").First().AttrOr("data-film-name", ""))
	}

	return domain.ListItem{
		Slug:   slug,
		Title:  title,
		Rating: ratingFromSelection(s.Find("span.rating").First()),
		Liked:  s.Find("span.like").Length() > 0,
	}, nil
}

// slugFrom tries the data attributes the catalog has used over time.
func slugFrom(s *goquery.Selection) string {
	for _, attr := range []string{"data-film-slug", "data-item-slug"} {
		if v := strings.TrimSpace(s.Find("[" + attr + "]").First().AttrOr(attr, "")); v != "" {
			return v
		}
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	for _, attr := range []string{"data-target-link", "data-film-link", "data-item-link"} {
		if v := slugFromLink(s.Find("[" + attr + "]").First().AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

// slugFromLink extracts "heat-1995" from "/film/heat-1995/".
func slugFromLink(link string) string {
	parts := strings.Split(strings.Trim(strings.TrimSpace(link), "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "film" {
			return parts[i+1]
		}
	}
	return ""
}

// hasNextPage is false only when a pagination block is present and has no
// "next" link. Without any pagination block the crawl relies on reaching an
// empty page.
func hasNextPage(doc *goquery.Document) bool {
	pagination := doc.Find(".pagination, .paginate-nextprev")
	if pagination.Length() == 0 {
		return true
	}
	return pagination.Find("a.next").Length() > 0
}
