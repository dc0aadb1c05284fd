package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/pkg/utils"
)

var diaryDayLink = regexp.MustCompile(`/for/(\d{4})/(\d{1,2})/(\d{1,2})/?`)

// CrawlDiary returns the user's diary entries in page order. It follows the
// same termination and first-page rules as Crawl.
func (c *Crawler) CrawlDiary(ctx context.Context, username string, opts Options) ([]domain.DiaryEntry, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return []domain.DiaryEntry{}, fmt.Errorf("%w: username is empty", ErrFirstPage)
	}

	entries := make([]domain.DiaryEntry, 0, 50)
	for page := 1; ; page++ {
		pageURL, err := utils.JoinPath(c.baseURL, fmt.Sprintf("/%s/films/diary/page/%d/", url.PathEscape(username), page))
		if err != nil {
			return []domain.DiaryEntry{}, fmt.Errorf("%w: %v", ErrFirstPage, err)
		}

		body, err := c.getPage(ctx, pageURL)
		if err != nil {
			if page == 1 {
				c.logger.Error("first diary page failed", zap.String("user", username), zap.Error(err))
				return []domain.DiaryEntry{}, fmt.Errorf("%w: %w", ErrFirstPage, err)
			}
			c.logger.Warn("diary page failed, ending crawl", zap.Int("page", page), zap.Error(err))
			return entries, nil
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			if page == 1 {
				return []domain.DiaryEntry{}, fmt.Errorf("%w: %w", ErrFirstPage, err)
			}
			return entries, nil
		}
		rows := parseDiaryRows(doc)
		if len(rows) == 0 {
			return entries, nil
		}
		entries = append(entries, rows...)
		c.logger.Info("diary page crawled", zap.String("user", username), zap.Int("page", page), zap.Int("total", len(entries)))

		if !hasNextPage(doc) {
			return entries, nil
		}
		if opts.MaxPages > 0 && page >= opts.MaxPages {
			return entries, nil
		}
		if err := sleep(ctx, c.pageDelay); err != nil {
			return entries, nil
		}
	}
}

func parseDiaryRows(doc *goquery.Document) []domain.DiaryEntry {
	var (
		out         []domain.DiaryEntry
		month, year string
	)
	doc.Find("tr.diary-entry-row").Each(func(_ int, row *goquery.Selection) {
		// Only the first row of each month carries the calendar cell.
		if cal := row.Find("td.td-calendar"); cal.Length() > 0 {
			m := strings.TrimSpace(cal.Find("strong").First().Text())
			y := strings.TrimSpace(cal.Find("small").First().Text())
			if m != "" && y != "" {
				month, year = m, y
			}
		}

		entry := domain.DiaryEntry{
			Slug:   slugFrom(row),
			Title:  diaryTitle(row),
			Rating: ratingFromSelection(row.Find("td.td-rating span.rating").First()),
		}

		day := row.Find("td.td-day")
		if d := diaryDate(day, month, year); d != nil {
			entry.WatchedDate = d
		}
		if y, err := strconv.Atoi(strings.TrimSpace(row.Find("td.td-released span").First().Text())); err == nil {
			entry.Year = &y
		}
		out = append(out, entry)
	})
	return out
}

func diaryTitle(row *goquery.Selection) string {
	for _, sel := range []string{"h2.name a", "h3.headline-3 a", "td.td-film-details h3 a", "td.td-film-details a"} {
		if t := strings.TrimSpace(row.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return strings.TrimSpace(row.Find("[data-film-name]").First().AttrOr("data-film-name", ""))
}

// diaryDate prefers the day link ("/for/2024/03/15/") and falls back to the
// day text combined with the carried month and year.
func diaryDate(day *goquery.Selection, month, year string) *time.Time {
	if href, ok := day.Find("a").First().Attr("href"); ok {
		if m := diaryDayLink.FindStringSubmatch(href); m != nil {
			y, _ := strconv.Atoi(m[1])
			mo, _ := strconv.Atoi(m[2])
			d, _ := strconv.Atoi(m[3])
			if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
				t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
				return &t
			}
		}
	}
	text := strings.TrimSpace(day.Text())
	if text == "" || month == "" || year == "" {
		return nil
	}
	t, err := time.Parse("2 Jan 2006", fmt.Sprintf("%s %s %s", text, month, year))
	if err != nil {
		return nil
	}
	return &t
}
