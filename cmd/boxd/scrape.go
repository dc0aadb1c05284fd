package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/dataset"
	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/internal/usecase"
)

var (
	scrapeConcurrency int
	scrapeMaxPages    int
	scrapeOut         string
	scrapeFormat      string
	scrapeRefresh     bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <username>",
	Short: "Scrape a user's films with details",
	Long: `Crawl every page of the user's films listing, fetch each film's details
concurrently and write one row per film in listing order.

Examples:
  boxd scrape alice                          # CSV to stdout
  boxd scrape alice --out alice.csv
  boxd scrape alice --format json --concurrency 20
  boxd scrape alice --max-pages 2 --refresh  # first two pages, ignore cache`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if scrapeFormat != "csv" && scrapeFormat != "json" {
			return fmt.Errorf("unknown format %q: use csv or json", scrapeFormat)
		}
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		stderr := cmd.ErrOrStderr()
		records, err := a.scraper.Scrape(ctx, args[0], usecase.ScrapeOptions{
			Concurrency: scrapeConcurrency,
			MaxPages:    scrapeMaxPages,
			Refresh:     scrapeRefresh,
			Progress: func(completed, total int) {
				fmt.Fprintf(stderr, "\rdetails %d/%d", completed, total)
				if completed == total {
					fmt.Fprintln(stderr)
				}
			},
		})
		if err != nil {
			a.logger.Error("scrape failed", zap.String("user", args[0]), zap.Error(err))
			return err
		}

		return writeOutput(cmd.OutOrStdout(), scrapeOut, func(w io.Writer) error {
			if scrapeFormat == "json" {
				if records == nil {
					records = []domain.FilmRecord{}
				}
				return dataset.WriteJSON(w, records)
			}
			return dataset.WriteCSV(w, records)
		})
	},
}

// writeOutput writes to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeConcurrency, "concurrency", 0, "detail workers (default: SCRAPE_WORKERS)")
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "stop after this many listing pages (0 = all)")
	scrapeCmd.Flags().StringVar(&scrapeOut, "out", "", "output file (default: stdout)")
	scrapeCmd.Flags().StringVar(&scrapeFormat, "format", "csv", "output format: csv or json")
	scrapeCmd.Flags().BoolVar(&scrapeRefresh, "refresh", false, "ignore cached film details")

	rootCmd.AddCommand(scrapeCmd)
}
