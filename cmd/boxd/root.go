package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "boxd",
	Short: "Scrape a Letterboxd user's film history into a dataset",
	Long: `boxd collects every film a Letterboxd member has logged, enriches each one
with details from its film page (year, runtime, genres, crew, cast, community
statistics) and writes the merged dataset in listing order.

Configuration is read from a .env file and the environment; see --config.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "env-style config file (default: ./.env)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)",
	)
}
