// Package server provides the read-only job inspection HTTP surface.
// It includes handlers, middleware, routes, and DTOs separated from
// domain types.
package server

import (
	"time"

	"github.com/maauso/subtitlegen/internal/errorx"
	"github.com/maauso/subtitlegen/internal/job"
)

// TargetOutput is the emitted file pair for one language/mode target.
type TargetOutput struct {
	Language string `json:"language"`
	Mode     string `json:"mode,omitempty"`
	SRTPath  string `json:"srt_path"`
	VTTPath  string `json:"vtt_path"`
}

// JobResponse is the HTTP response for getting job details: a snapshot of
// the durable job record, not a live reference.
type JobResponse struct {
	ID             string         `json:"id"`
	Stage          string         `json:"stage"`
	SourcePath     string         `json:"source_path"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Targets        []job.Target   `json:"targets"`
	LastError      *errorx.Record `json:"last_error,omitempty"`
	CleanupPending bool           `json:"cleanup_pending"`
	Outputs        []TargetOutput `json:"outputs,omitempty"`
}

// JobSummary is the condensed form of a job shown in list responses.
type JobSummary struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobListResponse is the HTTP response for GET /jobs.
type JobListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:             j.ID,
		Stage:          string(j.GetStage()),
		SourcePath:     j.SourcePath,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
		Targets:        j.Targets,
		LastError:      j.LastError,
		CleanupPending: j.CleanupPending,
	}
	for _, t := range j.Targets {
		paths, ok := j.Outputs[t]
		if !ok {
			continue
		}
		resp.Outputs = append(resp.Outputs, TargetOutput{
			Language: t.Language,
			Mode:     t.Mode,
			SRTPath:  paths.SRTPath,
			VTTPath:  paths.VTTPath,
		})
	}
	return resp
}

func toJobSummary(j *job.Job) JobSummary {
	return JobSummary{
		ID:        j.ID,
		Stage:     string(j.GetStage()),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
