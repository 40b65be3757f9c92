package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/subtitlegen/internal/jobstore"
)

// farFutureHorizon is passed to ListTerminal when a caller wants every
// terminal job regardless of age, since the store only supports an
// upper-bound query.
const farFutureHorizon = 100 * 365 * 24 * time.Hour

// Handlers contains the HTTP handlers for the read-only job inspection API.
type Handlers struct {
	store  jobstore.Store
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store jobstore.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, logger: logger}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.store.Load(jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to load job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// ListJobs handles GET /jobs requests. By default it returns jobs still in
// flight; ?all=true also includes every terminal job regardless of age.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	active, err := h.store.ListActive()
	if err != nil {
		h.logger.Error("failed to list active jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	jobs := active
	if r.URL.Query().Get("all") == "true" {
		terminal, err := h.store.ListTerminal(time.Now().Add(farFutureHorizon))
		if err != nil {
			h.logger.Error("failed to list terminal jobs", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
			return
		}
		jobs = append(jobs, terminal...)
	}

	resp := JobListResponse{Jobs: make([]JobSummary, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobSummary(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
