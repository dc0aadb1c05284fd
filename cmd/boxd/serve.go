package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/delivery/http/handler"
	"github.com/user/boxd-office/internal/delivery/http/router"
	"github.com/user/boxd-office/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scrape API server",
	Long: `Start the HTTP API.

Endpoints:
  POST /api/scrape                   start a background scrape
  GET  /api/jobs/{id}                job progress
  GET  /api/users/{username}/films   stored dataset (?format=csv)
  GET  /api/health                   store health
  GET  /metrics                      Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		log := a.logger

		port := a.cfg.ServerPort
		if servePort != "" {
			port = servePort
		}

		jobs := usecase.NewJobManager(a.scraper, a.films, log)
		h := handler.NewHandler(jobs, a.checks, log)
		server := &http.Server{
			Addr:         ":" + port,
			Handler:      router.New(h, log, a.metrics, a.registry),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 75 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()
		log.Info("server started", zap.String("port", port))

		select {
		case err := <-errCh:
			if err != nil {
				log.Error("could not start server", zap.Error(err))
				return err
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
		if err := jobs.Shutdown(shutdownCtx); err != nil {
			log.Warn("scrape jobs did not stop in time", zap.Error(err))
		}
		log.Info("server exiting")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (default: SERVER_PORT)")

	rootCmd.AddCommand(serveCmd)
}
