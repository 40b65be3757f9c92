package jobstore

import (
	"time"

	"github.com/maauso/subtitlegen/internal/errorx"
	"github.com/maauso/subtitlegen/internal/job"
)

// record is the on-disk shape of a job.Job. Field names are stable per
// spec §6 ("Field names are stable; schema version is a required field").
// Maps keyed by job.ResultKey are flattened to slices here so the YAML on
// disk stays a plain, diffable document instead of relying on yaml.v3's
// support for non-scalar mapping keys. Job.Outputs (keyed by job.Target) is
// not part of the record: a job loaded from disk has an empty Outputs map.
type record struct {
	SchemaVersion         int                `yaml:"schema_version"`
	ID                    string             `yaml:"id"`
	SourcePath            string             `yaml:"source_path"`
	CreatedAt             time.Time          `yaml:"created_at"`
	UpdatedAt             time.Time          `yaml:"updated_at"`
	Targets               []job.Target       `yaml:"targets"`
	Stage                 job.Stage          `yaml:"stage"`
	AttemptCounts         []attemptEntry     `yaml:"attempt_counts"`
	Media                 *job.Media         `yaml:"media,omitempty"`
	Segments              []job.Segment      `yaml:"segments,omitempty"`
	Uploaded              []int              `yaml:"uploaded,omitempty"`
	PerChunkResults       []resultEntry      `yaml:"per_chunk_results,omitempty"`
	LastError             *errorx.Record     `yaml:"last_error,omitempty"`
	ReservedBlobNamespace string             `yaml:"reserved_blob_namespace"`
	QuotaPausedUntil      time.Time          `yaml:"quota_paused_until,omitempty"`
	CleanupPending        bool               `yaml:"cleanup_pending"`
	KeepTemp              bool               `yaml:"keep_temp,omitempty"`
}

type attemptEntry struct {
	Key   job.ResultKey `yaml:"key"`
	Count int           `yaml:"count"`
}

type resultEntry struct {
	Key job.ResultKey `yaml:"key"`
	Ref job.CueRef    `yaml:"ref"`
}

func toRecord(j *job.Job) *record {
	j2 := j.Clone()

	r := &record{
		SchemaVersion:         j2.SchemaVersion,
		ID:                    j2.ID,
		SourcePath:            j2.SourcePath,
		CreatedAt:             j2.CreatedAt,
		UpdatedAt:             j2.UpdatedAt,
		Targets:               j2.Targets,
		Stage:                 j2.Stage,
		Media:                 j2.Media,
		Segments:              j2.Segments,
		LastError:             j2.LastError,
		ReservedBlobNamespace: j2.ReservedBlobNamespace,
		QuotaPausedUntil:      j2.QuotaPausedUntil,
		CleanupPending:        j2.CleanupPending,
		KeepTemp:              j2.KeepTemp,
	}
	for k, v := range j2.AttemptCounts {
		r.AttemptCounts = append(r.AttemptCounts, attemptEntry{Key: k, Count: v})
	}
	for idx, present := range j2.Uploaded {
		if present {
			r.Uploaded = append(r.Uploaded, idx)
		}
	}
	for k, v := range j2.PerChunkResults {
		r.PerChunkResults = append(r.PerChunkResults, resultEntry{Key: k, Ref: v})
	}
	return r
}

func fromRecord(r *record) *job.Job {
	j := &job.Job{
		SchemaVersion:         r.SchemaVersion,
		ID:                    r.ID,
		SourcePath:            r.SourcePath,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
		Targets:               r.Targets,
		Stage:                 r.Stage,
		AttemptCounts:         make(map[job.ResultKey]int, len(r.AttemptCounts)),
		Media:                 r.Media,
		Segments:              r.Segments,
		Uploaded:              make(map[int]bool, len(r.Uploaded)),
		PerChunkResults:       make(map[job.ResultKey]job.CueRef, len(r.PerChunkResults)),
		Outputs:               make(map[job.Target]job.OutputPaths),
		LastError:             r.LastError,
		ReservedBlobNamespace: r.ReservedBlobNamespace,
		QuotaPausedUntil:      r.QuotaPausedUntil,
		CleanupPending:        r.CleanupPending,
		KeepTemp:              r.KeepTemp,
	}
	for _, e := range r.AttemptCounts {
		j.AttemptCounts[e.Key] = e.Count
	}
	for _, idx := range r.Uploaded {
		j.Uploaded[idx] = true
	}
	for _, e := range r.PerChunkResults {
		j.PerChunkResults[e.Key] = e.Ref
	}
	return j
}
