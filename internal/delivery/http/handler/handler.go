package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/boxd-office/internal/dataset"
	"github.com/user/boxd-office/internal/delivery/http/request"
	"github.com/user/boxd-office/internal/delivery/http/response"
	"github.com/user/boxd-office/internal/domain"
	"github.com/user/boxd-office/internal/usecase"
)

const maxConcurrency = 64

// JobService is the part of the job manager the API exposes.
type JobService interface {
	Submit(username string, concurrency, maxPages int) (string, error)
	Status(id string) (domain.JobStatus, error)
	Films(ctx context.Context, username string) ([]domain.FilmRecord, error)
}

// HealthCheck pings one backing store.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	jobs   JobService
	checks map[string]HealthCheck
	logger *zap.Logger
}

func NewHandler(jobs JobService, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jobs: jobs, checks: checks, logger: logger}
}

func (h *Handler) HandleSubmitScrape(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		h.writeJSONError(w, "username is required", http.StatusBadRequest)
		return
	}
	if req.Concurrency < 0 || req.Concurrency > maxConcurrency || req.MaxPages < 0 {
		h.writeJSONError(w, "concurrency must be within 0..64 and max_pages must not be negative", http.StatusBadRequest)
		return
	}

	id, err := h.jobs.Submit(req.Username, req.Concurrency, req.MaxPages)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrJobRunning):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "job_id": id})
		case errors.Is(err, usecase.ErrShuttingDown):
			h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
		default:
			h.logger.Error("failed to submit scrape", zap.String("user", req.Username), zap.Error(err))
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.SubmitScrapeResponse{
		Status:  "accepted",
		Message: "Scrape started",
		JobID:   id,
	})
}

func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	status, err := h.jobs.Status(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, usecase.ErrJobNotFound) {
			h.writeJSONError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) HandleGetFilms(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	films, err := h.jobs.Films(r.Context(), username)
	if err != nil {
		if errors.Is(err, usecase.ErrNoStore) {
			h.writeJSONError(w, "Film storage is not configured", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("failed to load films", zap.String("user", username), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(films) == 0 {
		h.writeJSONError(w, "No films stored for this user", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+username+`.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := dataset.WriteCSV(w, films); err != nil {
			h.logger.Error("failed to write CSV response", zap.Error(err))
		}
		return
	}
	h.writeJSON(w, http.StatusOK, response.FilmsResponse{Username: username, Count: len(films), Films: films})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "ok"}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			healthy = false
			h.logger.Error("health check failed", zap.String("store", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !healthy {
		healthStatus["status"] = "degraded"
		h.writeJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	h.writeJSON(w, http.StatusOK, healthStatus)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
