package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/internal/fetch"
)

type entry struct {
	slug, title, stars string
	liked              bool
}

func posterLI(e entry) string {
	var b strings.Builder
	b.WriteString(`<li class="poster-container">`)
	if e.slug != "" {
		fmt.Fprintf(&b, `<div class="film-poster" data-film-slug="%s"><img alt="%s" src="x.jpg"/></div>`, e.slug, e.title)
	} else {
		fmt.Fprintf(&b, `<div class="film-poster"><img alt="%s" src="x.jpg"/></div>`, e.title)
	}
	b.WriteString(`<p class="poster-viewingdata">`)
	if e.stars != "" {
		fmt.Fprintf(&b, `<span class="rating">%s</span>`, e.stars)
	}
	if e.liked {
		b.WriteString(`<span class="like liked-micro has-icon icon-liked icon-16"></span>`)
	}
	b.WriteString(`</p></li>`)
	return b.String()
}

// listingHTML renders a page; pagination is "none", "next" or "last".
func listingHTML(pagination string, entries ...entry) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="poster-list">`)
	for _, e := range entries {
		b.WriteString(posterLI(e))
	}
	b.WriteString(`</ul>`)
	switch pagination {
	case "next":
		b.WriteString(`<div class="pagination"><div class="paginate-nextprev"><a class="next" href="page/2/">Older</a></div></div>`)
	case "last":
		b.WriteString(`<div class="pagination"><div class="paginate-nextprev paginate-disabled"><span class="next">Older</span></div></div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

type site struct {
	mu    sync.Mutex
	pages map[string]string
	codes map[string]int
	hits  []string
}

func newSite(t *testing.T) (*site, *httptest.Server) {
	s := &site{pages: map[string]string{}, codes: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits = append(s.hits, r.URL.Path)
		code, hasCode := s.codes[r.URL.Path]
		body, ok := s.pages[r.URL.Path]
		s.mu.Unlock()
		if hasCode {
			w.WriteHeader(code)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func newTestCrawler(srv *httptest.Server) *Crawler {
	client := fetch.New(fetch.Options{Timeout: 2 * time.Second, MaxRetries: 0})
	return New(client, srv.URL)
}

func slugs(items []domain.ListItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Slug)
	}
	return out
}

const base = "/alice/films/by/date-earliest/"

func TestCrawl_PaginatesUntilEmptyPage(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("none",
		entry{slug: "heat-1995", title: "Heat", stars: "★★★½", liked: true},
		entry{slug: "ronin", title: "Ronin"},
	)
	s.pages[base+"page/2/"] = listingHTML("none", entry{slug: "thief", title: "Thief", stars: "★★★★★"})
	s.pages[base+"page/3/"] = listingHTML("none")

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"heat-1995", "ronin", "thief"}, slugs(items))

	require.Equal(t, "Heat", items[0].Title)
	require.NotNil(t, items[0].Rating)
	require.Equal(t, 3.5, *items[0].Rating)
	require.True(t, items[0].Liked)

	require.Nil(t, items[1].Rating)
	require.False(t, items[1].Liked)
	require.Equal(t, 5.0, *items[2].Rating)

	require.Equal(t, []string{base, base + "page/2/", base + "page/3/"}, s.hits)
}

func TestCrawl_StopsAtNoNextMarker(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("next", entry{slug: "a", title: "A"})
	s.pages[base+"page/2/"] = listingHTML("last", entry{slug: "b", title: "B"})
	s.pages[base+"page/3/"] = listingHTML("none", entry{slug: "never", title: "Never"})

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, slugs(items))
	require.Len(t, s.hits, 2)
}

func TestCrawl_FirstPageFailure(t *testing.T) {
	s, srv := newSite(t)
	s.codes[base] = http.StatusNotFound

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrFirstPage))
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestCrawl_LaterPageFailureKeepsItems(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("next", entry{slug: "a", title: "A"})
	s.codes[base+"page/2/"] = http.StatusInternalServerError

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, slugs(items))
}

func TestCrawl_SkipsEntryWithoutSlug(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("last",
		entry{slug: "a", title: "A"},
		entry{title: "Broken"},
		entry{slug: "c", title: "C"},
	)

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, slugs(items))
}

func TestCrawl_StopsAtPageWithOnlyUnparseableEntries(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("none", entry{slug: "a", title: "A"})
	s.pages[base+"page/2/"] = listingHTML("none", entry{title: "Broken"}, entry{title: "Also broken"})
	s.pages[base+"page/3/"] = listingHTML("none", entry{slug: "late", title: "Late"})

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, slugs(items))
	require.Equal(t, []string{base, base + "page/2/"}, s.hits)
}

func TestCrawl_PageDelay(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("next", entry{slug: "a", title: "A"})
	s.pages[base+"page/2/"] = listingHTML("last", entry{slug: "b", title: "B"})

	client := fetch.New(fetch.Options{Timeout: 2 * time.Second, MaxRetries: 0})
	c := New(client, srv.URL, WithPageDelay(50*time.Millisecond))

	start := time.Now()
	items, err := c.Crawl(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, slugs(items))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestCrawl_MaxPages(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("next", entry{slug: "a", title: "A"})
	s.pages[base+"page/2/"] = listingHTML("next", entry{slug: "b", title: "B"})
	s.pages[base+"page/3/"] = listingHTML("next", entry{slug: "c", title: "C"})

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{MaxPages: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, slugs(items))
}

func TestCrawl_DropsDuplicateSlugs(t *testing.T) {
	s, srv := newSite(t)
	s.pages[base] = listingHTML("next", entry{slug: "a", title: "A"}, entry{slug: "b", title: "B"})
	s.pages[base+"page/2/"] = listingHTML("last", entry{slug: "b", title: "B"}, entry{slug: "c", title: "C"})

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, slugs(items))
}

func TestCrawl_CustomSortAndNewerMarkup(t *testing.T) {
	s, srv := newSite(t)
	s.pages["/alice/films/by/rated-higher/"] = `<html><body><ul>
<li class="griditem"><div class="react-component" data-item-name="Heat (1995)" data-target-link="/film/heat-1995/"></div>
<p class="poster-viewingdata"><span class="rating -micro -darker rated-7"></span></p></li>
</ul></body></html>`

	items, err := newTestCrawler(srv).Crawl(context.Background(), "alice", Options{Sort: "rated-higher"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "heat-1995", items[0].Slug)
	require.Equal(t, "Heat (1995)", items[0].Title)
	require.Equal(t, 3.5, *items[0].Rating)
}

func TestCrawl_EmptyUsername(t *testing.T) {
	_, srv := newSite(t)
	items, err := newTestCrawler(srv).Crawl(context.Background(), "  ", Options{})
	require.ErrorIs(t, err, ErrFirstPage)
	require.Empty(t, items)
}
