// Package job provides the Job aggregate for the subtitle generation
// pipeline. It holds the stage state machine, the per-segment and
// per-target bookkeeping the scheduler drives, and the mutex-guarded
// mutators that make Job safe to hand across goroutines via Clone.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/errorx"
)

// Stage is one state in the job pipeline's state machine.
type Stage string

const (
	StageNew        Stage = "New"
	StageValidated  Stage = "Validated"
	StageSegmented  Stage = "Segmented"
	StageUploaded   Stage = "Uploaded"
	StageGenerated  Stage = "Generated"
	StageMerged     Stage = "Merged"
	StageValidated2 Stage = "Validated2"
	StageEmitted    Stage = "Emitted"
	StageCompleted  Stage = "Completed"
	StageFailed     Stage = "Failed"
	StageAbandoned  Stage = "Abandoned"
)

// ErrInvalidTransition is returned when an invalid stage transition is
// attempted.
var ErrInvalidTransition = errors.New("job: invalid stage transition")

// validTransitions defines which forward transitions are allowed, plus the
// scheduler-initiated rewinds (Validated2 -> Uploaded on a quality retry,
// and Validated -> Segmented is implicitly re-enterable because segmenting
// is itself resumable — see internal/segmenter). Abandoned is not listed
// here: canTransition treats it as reachable from any non-terminal stage.
var validTransitions = map[Stage][]Stage{
	StageNew:        {StageValidated, StageFailed},
	StageValidated:  {StageSegmented, StageFailed},
	StageSegmented:  {StageUploaded, StageFailed},
	StageUploaded:   {StageGenerated, StageFailed},
	StageGenerated:  {StageMerged, StageFailed},
	StageMerged:     {StageValidated2, StageFailed},
	StageValidated2: {StageEmitted, StageUploaded, StageFailed}, // StageUploaded: quality-retry rewind
	StageEmitted:    {StageCompleted, StageFailed},
	StageCompleted:  {},
	StageFailed:     {},
	StageAbandoned:  {},
}

func canTransition(from, to Stage) bool {
	if to == StageAbandoned {
		return !from.IsTerminal()
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a stage is one the scheduler never leaves.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageAbandoned
}

// Target is a requested output: a language plus an optional accessibility
// mode ("" for the standard track, "sdh" for the accessibility variant).
type Target struct {
	Language string `yaml:"language" json:"language"`
	Mode     string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// ResultKey indexes per-chunk results and attempt counts: the spec's
// (segment_index, language, mode) and (chunk_index, language, mode) keys.
type ResultKey struct {
	SegmentIndex int    `yaml:"segment_index" json:"segment_index"`
	Language     string `yaml:"language" json:"language"`
	Mode         string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// Segment is a contiguous time interval of the source, extracted as an
// independently decodable clip.
type Segment struct {
	Index      int       `yaml:"index" json:"index"`
	Start      float64   `yaml:"start" json:"start"`       // seconds, 3-decimal precision
	Duration   float64   `yaml:"duration" json:"duration"` // seconds
	LocalPath  string    `yaml:"local_path" json:"local_path"`
	BlobKey    string    `yaml:"blob_key,omitempty" json:"blob_key,omitempty"`
	Checksum   string    `yaml:"checksum" json:"checksum"`
	SizeBytes  int64     `yaml:"size_bytes" json:"size_bytes"`
}

// Media holds the probed metadata for a job's source file.
type Media struct {
	Duration   float64 `yaml:"duration" json:"duration"`
	Width      int     `yaml:"width" json:"width"`
	Height     int     `yaml:"height" json:"height"`
	FrameRate  float64 `yaml:"frame_rate" json:"frame_rate"`
	HasAudio   bool    `yaml:"has_audio" json:"has_audio"`
	HasVideo   bool    `yaml:"has_video" json:"has_video"`
	Codec      string  `yaml:"codec" json:"codec"`
	SizeBytes  int64   `yaml:"size_bytes" json:"size_bytes"`
}

// CueRef is a transient pointer to a parsed cue sequence for one
// (segment, language, mode) unit of work. The sequence itself lives in
// scratch storage; the job record only carries a path and a count so the
// durable record stays small.
type CueRef struct {
	Path     string `yaml:"path" json:"path"`
	CueCount int    `yaml:"cue_count" json:"cue_count"`
}

// OutputPaths is the pair of emitted file paths for one target.
type OutputPaths struct {
	SRTPath string `yaml:"srt_path" json:"srt_path"`
	VTTPath string `yaml:"vtt_path" json:"vtt_path"`
}

// SchemaVersion is bumped whenever the durable record's shape changes.
// Reading an unknown version is a fatal error for that job.
const SchemaVersion = 1

// Job is the unit of work: one source video, one or more language targets,
// driven through the pipeline's stages by the scheduler.
type Job struct {
	mu sync.RWMutex

	SchemaVersion int       `yaml:"schema_version" json:"schema_version"`
	ID            string    `yaml:"id" json:"id"`
	SourcePath    string    `yaml:"source_path" json:"source_path"`
	CreatedAt     time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time `yaml:"updated_at" json:"updated_at"`

	Targets []Target `yaml:"targets" json:"targets"`
	Stage   Stage    `yaml:"stage" json:"stage"`

	AttemptCounts map[ResultKey]int `yaml:"attempt_counts" json:"attempt_counts"`

	Media *Media `yaml:"media,omitempty" json:"media,omitempty"`

	Segments []Segment `yaml:"segments,omitempty" json:"segments,omitempty"`
	Uploaded map[int]bool `yaml:"uploaded,omitempty" json:"uploaded,omitempty"`

	PerChunkResults map[ResultKey]CueRef `yaml:"per_chunk_results,omitempty" json:"per_chunk_results,omitempty"`
	Outputs         map[Target]OutputPaths `yaml:"-" json:"-"`

	LastError *errorx.Record `yaml:"last_error,omitempty" json:"last_error,omitempty"`

	ReservedBlobNamespace string `yaml:"reserved_blob_namespace" json:"reserved_blob_namespace"`

	// QuotaPausedUntil is non-zero while a target is in the paused
	// sub-state described in spec §4.10 ("Uploaded -> Generated").
	QuotaPausedUntil time.Time `yaml:"quota_paused_until,omitempty" json:"quota_paused_until,omitempty"`

	// CleanupPending is set by the reaper when its delete_prefix or scratch
	// removal failed, and must be retried on the next sweep.
	CleanupPending bool `yaml:"cleanup_pending" json:"cleanup_pending"`

	// KeepTemp disables scratch/blob cleanup, for debugging.
	KeepTemp bool `yaml:"keep_temp,omitempty" json:"keep_temp,omitempty"`
}

// New creates a new Job in stage New.
func New(c clock.Clock, sourcePath string, targets []Target) *Job {
	id := clock.NewJobID(c)
	return NewWithID(c, id, sourcePath, targets)
}

// NewWithID creates a new Job with an externally supplied ID.
func NewWithID(c clock.Clock, id, sourcePath string, targets []Target) *Job {
	now := c.Now()
	return &Job{
		SchemaVersion:         SchemaVersion,
		ID:                    id,
		SourcePath:            sourcePath,
		CreatedAt:             now,
		UpdatedAt:             now,
		Targets:               targets,
		Stage:                 StageNew,
		AttemptCounts:         make(map[ResultKey]int),
		Uploaded:              make(map[int]bool),
		PerChunkResults:       make(map[ResultKey]CueRef),
		Outputs:               make(map[Target]OutputPaths),
		ReservedBlobNamespace: "job/" + id,
	}
}

// TransitionTo attempts to move the job to the given stage. Only the
// scheduler calls this; every other component returns pure results.
func (j *Job) TransitionTo(c clock.Clock, to Stage) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Stage, to) {
		return ErrInvalidTransition
	}
	j.Stage = to
	j.UpdatedAt = c.Now()
	return nil
}

// Fail moves the job to Failed and records the causing error.
func (j *Job) Fail(c clock.Clock, rec errorx.Record) error {
	j.mu.Lock()
	j.LastError = &rec
	j.mu.Unlock()
	return j.TransitionTo(c, StageFailed)
}

// Abandon moves the job to Abandoned (operator request or shutdown).
func (j *Job) Abandon(c clock.Clock) error {
	return j.TransitionTo(c, StageAbandoned)
}

// GetStage returns the current stage (thread-safe).
func (j *Job) GetStage() Stage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage
}

// IsTerminal reports whether the job has reached a stage the scheduler
// never leaves.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage.IsTerminal()
}

// SetMedia records probed media metadata.
func (j *Job) SetMedia(c clock.Clock, m Media) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Media = &m
	j.UpdatedAt = c.Now()
}

// SetSegments replaces the segment list (used after segmentation
// completes or partially completes).
func (j *Job) SetSegments(c clock.Clock, segs []Segment) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Segments = segs
	j.UpdatedAt = c.Now()
}

// MarkUploaded records that a segment's blob is present in the store.
func (j *Job) MarkUploaded(c clock.Clock, segmentIndex int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Uploaded == nil {
		j.Uploaded = make(map[int]bool)
	}
	j.Uploaded[segmentIndex] = true
	j.UpdatedAt = c.Now()
}

// AllUploaded reports whether uploaded == {0..N-1} for the current segment
// count.
func (j *Job) AllUploaded() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.Segments) == 0 {
		return false
	}
	for i := range j.Segments {
		if !j.Uploaded[i] {
			return false
		}
	}
	return true
}

// SetResult records a completed (segment, language, mode) generation.
func (j *Job) SetResult(c clock.Clock, key ResultKey, ref CueRef) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.PerChunkResults == nil {
		j.PerChunkResults = make(map[ResultKey]CueRef)
	}
	j.PerChunkResults[key] = ref
	j.UpdatedAt = c.Now()
}

// ClearResults removes the given keys from per_chunk_results, used when a
// quality retry attributes fault to specific chunks.
func (j *Job) ClearResults(c clock.Clock, keys []ResultKey) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, k := range keys {
		delete(j.PerChunkResults, k)
	}
	j.UpdatedAt = c.Now()
}

// IncrementAttempt bumps the attempt counter for a unit of work and returns
// the new count. It never exceeds maxAttempts in a stable state; callers
// are expected to check against maxAttempts before allowing another retry.
func (j *Job) IncrementAttempt(c clock.Clock, key ResultKey) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.AttemptCounts == nil {
		j.AttemptCounts = make(map[ResultKey]int)
	}
	j.AttemptCounts[key]++
	j.UpdatedAt = c.Now()
	return j.AttemptCounts[key]
}

// AttemptCount returns the current attempt count for a unit of work.
func (j *Job) AttemptCount(key ResultKey) int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.AttemptCounts[key]
}

// SetOutputs records the emitted file pair for a target.
func (j *Job) SetOutputs(c clock.Clock, t Target, paths OutputPaths) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Outputs == nil {
		j.Outputs = make(map[Target]OutputPaths)
	}
	j.Outputs[t] = paths
	j.UpdatedAt = c.Now()
}

// PauseForQuota records the quota cooldown the scheduler must honor before
// re-queuing the job's remaining generation tasks.
func (j *Job) PauseForQuota(c clock.Clock, until time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.QuotaPausedUntil = until
	j.UpdatedAt = c.Now()
}

// QuotaPaused reports whether the job is still inside its cooldown window.
func (j *Job) QuotaPaused(c clock.Clock) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return c.Now().Before(j.QuotaPausedUntil)
}

// SetCleanupPending records whether the reaper still owes this job a
// blob/scratch sweep.
func (j *Job) SetCleanupPending(c clock.Clock, pending bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.CleanupPending = pending
	j.UpdatedAt = c.Now()
}

// Clone creates a deep copy of the job for safe reads outside the
// scheduler's lock.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	segments := make([]Segment, len(j.Segments))
	copy(segments, j.Segments)

	uploaded := make(map[int]bool, len(j.Uploaded))
	for k, v := range j.Uploaded {
		uploaded[k] = v
	}

	attempts := make(map[ResultKey]int, len(j.AttemptCounts))
	for k, v := range j.AttemptCounts {
		attempts[k] = v
	}

	results := make(map[ResultKey]CueRef, len(j.PerChunkResults))
	for k, v := range j.PerChunkResults {
		results[k] = v
	}

	outputs := make(map[Target]OutputPaths, len(j.Outputs))
	for k, v := range j.Outputs {
		outputs[k] = v
	}

	targets := make([]Target, len(j.Targets))
	copy(targets, j.Targets)

	var media *Media
	if j.Media != nil {
		m := *j.Media
		media = &m
	}

	var lastErr *errorx.Record
	if j.LastError != nil {
		e := *j.LastError
		lastErr = &e
	}

	return &Job{
		SchemaVersion:         j.SchemaVersion,
		ID:                    j.ID,
		SourcePath:            j.SourcePath,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
		Targets:               targets,
		Stage:                 j.Stage,
		AttemptCounts:         attempts,
		Media:                 media,
		Segments:              segments,
		Uploaded:              uploaded,
		PerChunkResults:       results,
		Outputs:               outputs,
		LastError:             lastErr,
		ReservedBlobNamespace: j.ReservedBlobNamespace,
		QuotaPausedUntil:      j.QuotaPausedUntil,
		CleanupPending:        j.CleanupPending,
		KeepTemp:              j.KeepTemp,
	}
}
