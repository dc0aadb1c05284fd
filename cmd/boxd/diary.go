package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/user/boxd-office/internal/dataset"
)

var (
	diaryMaxPages int
	diaryOut      string
)

var diaryCmd = &cobra.Command{
	Use:   "diary <username>",
	Short: "Export a user's diary of logged viewings as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := a.scraper.Diary(ctx, args[0], diaryMaxPages)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), diaryOut, func(w io.Writer) error {
			return dataset.WriteDiaryCSV(w, entries)
		})
	},
}

func init() {
	diaryCmd.Flags().IntVar(&diaryMaxPages, "max-pages", 0, "stop after this many diary pages (0 = all)")
	diaryCmd.Flags().StringVar(&diaryOut, "out", "", "output file (default: stdout)")

	rootCmd.AddCommand(diaryCmd)
}
