package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/boxd-office/internal/domain"
)

func fakeCatalog(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/alice/films/by/date-earliest/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alice/films/by/date-earliest/" {
			fmt.Fprint(w, `<html><body><ul class="poster-list"></ul></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><ul class="poster-list">
			<li class="poster-container"><div class="film-poster" data-film-slug="alien"><img alt="Alien"/></div>
				<p class="poster-viewingdata"><span class="rating">★★★★½</span></p></li>
			<li class="poster-container"><div class="film-poster" data-film-slug="heat-1995"><img alt="Heat"/></div></li>
		</ul></body></html>`)
	})
	mux.HandleFunc("/film/alien/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta property="og:title" content="Alien (1979)"></head><body></body></html>`)
	})
	mux.HandleFunc("/film/heat-1995/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeCommand_JSON(t *testing.T) {
	srv := fakeCatalog(t)
	t.Setenv("BASE_URL", srv.URL)
	t.Setenv("MAX_RETRIES", "0")
	t.Setenv("DETAIL_DELAY_MIN_MS", "0")
	t.Setenv("DETAIL_DELAY_MAX_MS", "0")
	t.Setenv("LIST_PAGE_DELAY_MS", "0")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("REDIS_ADDR", "")

	out := filepath.Join(t.TempDir(), "alice.json")
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"scrape", "alice", "--format", "json", "--out", out, "--config", filepath.Join(t.TempDir(), "none.env")})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		scrapeFormat, scrapeOut, cfgFile = "csv", "", ""
	})

	require.NoError(t, rootCmd.Execute())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	var records []domain.FilmRecord
	require.NoError(t, json.Unmarshal(b, &records))

	require.Len(t, records, 2)
	assert.Equal(t, "alien", records[0].Slug)
	assert.Equal(t, 4.5, *records[0].Rating)
	assert.Equal(t, 1979, *records[0].Year)
	assert.Equal(t, "heat-1995", records[1].Slug)
	assert.Nil(t, records[1].Year)
	assert.Contains(t, stderr.String(), "details 2/2")
}

func TestWriteOutput(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, writeOutput(&stdout, "", func(w io.Writer) error {
		_, err := w.Write([]byte("x"))
		return err
	}))
	assert.Equal(t, "x", stdout.String())

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, writeOutput(&stdout, path, func(w io.Writer) error {
		_, err := w.Write([]byte("a,b\n"))
		return err
	}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b", strings.TrimSpace(string(b)))
}
