// Package scheduler implements the Stage Scheduler (C10): the single-writer
// orchestrator that drives a Job through its stage state machine, dispatching
// bounded-concurrency tasks to the other pipeline components and persisting
// every stage transition and completed unit of work via the job store.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/maauso/subtitlegen/internal/blob"
	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/cue"
	"github.com/maauso/subtitlegen/internal/errorx"
	"github.com/maauso/subtitlegen/internal/job"
	"github.com/maauso/subtitlegen/internal/jobstore"
	"github.com/maauso/subtitlegen/internal/merge"
	"github.com/maauso/subtitlegen/internal/modeladapter"
	"github.com/maauso/subtitlegen/internal/probe"
	"github.com/maauso/subtitlegen/internal/quality"
	"github.com/maauso/subtitlegen/internal/segmenter"
)

// Cleaner releases a terminal job's external resources (blob namespace,
// scratch directory). Satisfied by *reaper.Reaper; kept as an interface here
// so the scheduler doesn't need to know the reaper's own dependencies.
type Cleaner interface {
	CleanupJob(ctx context.Context, j *job.Job) error
}

// Config carries the scheduler's concurrency bounds and output locations;
// field names track the spec's MAX_CONCURRENT_* / *_DIR configuration keys.
type Config struct {
	ChunkDurationS           float64
	MaxAttempts              int
	MaxConcurrentJobs        int64
	MaxConcurrentUploads     int64
	MaxConcurrentGenerations int64
	QuotaCooldown            time.Duration
	ScratchDir               string
	OutputDir                string
	Quality                  quality.Config
}

// DefaultConfig mirrors spec §6's configuration defaults.
func DefaultConfig() Config {
	return Config{
		ChunkDurationS:           60,
		MaxAttempts:              3,
		MaxConcurrentJobs:        3,
		MaxConcurrentUploads:     3,
		MaxConcurrentGenerations: 4,
		QuotaCooldown:            60 * time.Second,
		ScratchDir:               "/tmp/subtitlegen/scratch",
		OutputDir:                "/tmp/subtitlegen/output",
		Quality:                  quality.DefaultConfig(),
	}
}

// Scheduler drives jobs end to end. It is the only component that mutates
// Job state; every collaborator below it returns pure results.
type Scheduler struct {
	store     jobstore.Store
	prober    probe.Prober
	limits    probe.Limits
	segmenter *segmenter.Segmenter
	blobStore blob.Adapter
	model     *modeladapter.Adapter
	scorer    quality.Scorer
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config

	jobSem *semaphore.Weighted
	upSem  *semaphore.Weighted
	genSem *semaphore.Weighted

	cleaner Cleaner
	metrics *metrics
}

// New constructs a Scheduler. scorer may be nil; validateQuality passes an
// empty source language to quality.Evaluate, so the scorer is never called
// during a run. cleaner may be nil to skip inline cleanup on
// terminal transition (the reaper's periodic sweep still catches it later).
// reg may be nil to skip metrics registration.
func New(
	store jobstore.Store,
	prober probe.Prober,
	limits probe.Limits,
	seg *segmenter.Segmenter,
	blobStore blob.Adapter,
	model *modeladapter.Adapter,
	scorer quality.Scorer,
	c clock.Clock,
	logger *slog.Logger,
	cfg Config,
	reg prometheus.Registerer,
	cleaner Cleaner,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     store,
		prober:    prober,
		limits:    limits,
		segmenter: seg,
		blobStore: blobStore,
		model:     model,
		scorer:    scorer,
		clock:     c,
		logger:    logger,
		cfg:       cfg,
		jobSem:    semaphore.NewWeighted(maxOne(cfg.MaxConcurrentJobs)),
		upSem:     semaphore.NewWeighted(maxOne(cfg.MaxConcurrentUploads)),
		genSem:    semaphore.NewWeighted(maxOne(cfg.MaxConcurrentGenerations)),
		cleaner:   cleaner,
		metrics:   newMetrics(reg),
	}
}

func maxOne(n int64) int64 {
	if n < 1 {
		return 1
	}
	return n
}

// RunJob drives j from its current stage through to a terminal stage,
// persisting after every transition and every completed unit of work.
// Blocks on the job concurrency slot, so it should be called from its own
// goroutine per job the caller wants running concurrently.
func (s *Scheduler) RunJob(ctx context.Context, j *job.Job) error {
	if err := s.jobSem.Acquire(ctx, 1); err != nil {
		if ctx.Err() != nil {
			_ = j.Abandon(s.clock)
			_ = s.persist(j)
			s.cleanupTerminal(j)
		}
		return fmt.Errorf("scheduler: acquire job slot: %w", err)
	}
	defer s.jobSem.Release(1)

	s.metrics.activeJobs.Inc()
	defer s.metrics.activeJobs.Dec()

	for !j.IsTerminal() {
		select {
		case <-ctx.Done():
			_ = j.Abandon(s.clock)
			_ = s.persist(j)
			s.cleanupTerminal(j)
			return ctx.Err()
		default:
		}

		var err error
		switch j.GetStage() {
		case job.StageNew:
			err = s.validate(ctx, j)
		case job.StageValidated:
			err = s.segment(ctx, j)
		case job.StageSegmented:
			err = s.upload(ctx, j)
		case job.StageUploaded:
			err = s.generate(ctx, j)
		case job.StageGenerated:
			err = s.mergeStage(ctx, j)
		case job.StageMerged:
			err = s.validateQuality(ctx, j)
		case job.StageValidated2:
			err = s.emit(ctx, j)
		case job.StageEmitted:
			err = s.advance(j, job.StageCompleted)
		default:
			return fmt.Errorf("scheduler: unexpected stage %s", j.GetStage())
		}
		if err != nil {
			return err
		}
	}
	s.cleanupTerminal(j)
	return nil
}

// cleanupTerminal runs the reaper's inline cleanup for a job that just
// reached a terminal stage. Best-effort: a failure here leaves
// cleanup_pending set on the job record (CleanupJob's own responsibility),
// so the reaper's periodic sweep retries it later.
func (s *Scheduler) cleanupTerminal(j *job.Job) {
	if s.cleaner == nil {
		return
	}
	if err := s.cleaner.CleanupJob(context.Background(), j); err != nil {
		s.logger.Warn("scheduler: inline cleanup failed, deferring to reaper sweep",
			slog.String("job_id", j.ID), slog.String("error", err.Error()))
	}
}

func (s *Scheduler) persist(j *job.Job) error {
	if err := s.store.Save(j); err != nil {
		return fmt.Errorf("scheduler: persist job %s: %w", j.ID, err)
	}
	return nil
}

func (s *Scheduler) advance(j *job.Job, to job.Stage) error {
	if err := j.TransitionTo(s.clock, to); err != nil {
		return err
	}
	return s.persist(j)
}

func (s *Scheduler) failJob(j *job.Job, rec errorx.Record) error {
	s.logger.Error("job failed",
		slog.String("job_id", j.ID), slog.String("kind", string(rec.Kind)), slog.String("message", rec.Message))
	if err := j.Fail(s.clock, rec); err != nil {
		return err
	}
	return s.persist(j)
}

// --- New -> Validated ---

func (s *Scheduler) validate(ctx context.Context, j *job.Job) error {
	media, err := s.prober.Probe(ctx, j.SourcePath)
	if err != nil {
		return s.failJob(j, errorx.Record{Kind: errorx.InvalidInput, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
	}
	if err := probe.Admit(media, s.limits); err != nil {
		return s.failJob(j, errorx.Record{Kind: errorx.InvalidInput, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
	}
	j.SetMedia(s.clock, media)
	return s.advance(j, job.StageValidated)
}

// --- Validated -> Segmented ---

func (s *Scheduler) segment(ctx context.Context, j *job.Job) error {
	scratchDir := filepath.Join(s.cfg.ScratchDir, j.ID, "segments")
	segs, err := s.segmenter.Split(ctx, j.SourcePath, j.Media.Duration, s.cfg.ChunkDurationS, scratchDir, j.Segments)
	if err != nil {
		// Preserve whatever segments were already extracted so a rerun
		// resumes mid-list instead of starting over; the job stays in
		// Validated rather than failing outright.
		j.SetSegments(s.clock, segs)
		if perr := s.persist(j); perr != nil {
			return perr
		}
		return fmt.Errorf("segmentation failed, %d segment(s) preserved: %w", len(segs), err)
	}
	j.SetSegments(s.clock, segs)
	return s.advance(j, job.StageSegmented)
}

// --- Segmented -> Uploaded ---

func (s *Scheduler) upload(ctx context.Context, j *job.Job) error {
	pending := make([]job.Segment, 0, len(j.Segments))
	for _, seg := range j.Segments {
		if !j.Uploaded[seg.Index] {
			pending = append(pending, seg)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, seg := range pending {
		seg := seg
		g.Go(func() error {
			if err := s.upSem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer s.upSem.Release(1)

			s.metrics.inFlightUploads.Inc()
			defer s.metrics.inFlightUploads.Dec()

			putCtx, cancel := context.WithTimeout(gctx, blob.PerBlobTimeout)
			defer cancel()

			key := fmt.Sprintf("segments/%d", seg.Index)
			if _, err := s.blobStore.Put(putCtx, j.ReservedBlobNamespace, key, seg.LocalPath); err != nil {
				return fmt.Errorf("upload segment %d: %w", seg.Index, err)
			}

			j.MarkUploaded(s.clock, seg.Index)
			return s.persist(j)
		})
	}
	if err := g.Wait(); err != nil {
		return s.failJob(j, errorx.Record{Kind: errorx.TransientIO, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
	}

	if !j.AllUploaded() {
		return fmt.Errorf("scheduler: upload stage ended without covering all segments for job %s", j.ID)
	}
	return s.advance(j, job.StageUploaded)
}

// --- Uploaded -> Generated ---

type generationUnit struct {
	segment job.Segment
	target  job.Target
}

func (s *Scheduler) pendingGenerationUnits(j *job.Job) []generationUnit {
	var units []generationUnit
	for _, seg := range j.Segments {
		for _, t := range j.Targets {
			key := job.ResultKey{SegmentIndex: seg.Index, Language: t.Language, Mode: t.Mode}
			if _, ok := j.PerChunkResults[key]; ok {
				continue
			}
			units = append(units, generationUnit{segment: seg, target: t})
		}
	}
	return units
}

func (s *Scheduler) generate(ctx context.Context, j *job.Job) error {
	units := s.pendingGenerationUnits(j)

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		u := u
		g.Go(func() error {
			if err := s.genSem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer s.genSem.Release(1)

			s.metrics.inFlightGenerate.Inc()
			defer s.metrics.inFlightGenerate.Dec()

			return s.generateUnit(gctx, j, u.segment, u.target)
		})
	}

	if err := g.Wait(); err != nil {
		return s.terminateOnFault(j, err)
	}

	return s.advance(j, job.StageGenerated)
}

// terminateOnFault moves j to its terminal stage for err: Abandoned when the
// fault's policy disposition is abandon (Cancelled), Failed otherwise.
func (s *Scheduler) terminateOnFault(j *job.Job, err error) error {
	var fault *errorx.Fault
	if !errors.As(err, &fault) {
		return s.failJob(j, errorx.Record{Kind: errorx.TransientIO, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
	}
	if errorx.PolicyFor(fault.Kind).Disposition == errorx.DispositionAbandon {
		if aerr := j.Abandon(s.clock); aerr != nil {
			return aerr
		}
		return s.persist(j)
	}
	return s.failJob(j, fault.Record)
}

// generateUnit drives one (segment, target) pair to completion, honoring
// quota pauses (no attempt consumed, re-queued after cooldown) and the
// attempt budget for model-output faults. Fatal faults (auth, invalid
// input, cancellation) propagate immediately.
func (s *Scheduler) generateUnit(ctx context.Context, j *job.Job, seg job.Segment, target job.Target) error {
	key := job.ResultKey{SegmentIndex: seg.Index, Language: target.Language, Mode: target.Mode}
	ref := blob.RemoteRef{Namespace: j.ReservedBlobNamespace, Key: fmt.Sprintf("segments/%d", seg.Index)}

	for {
		cueText, err := s.model.Generate(ctx, modeladapter.GenerateRequest{
			SegmentRef:      ref,
			SegmentChecksum: seg.Checksum,
			Language:        target.Language,
			Mode:            target.Mode,
		})
		if err == nil {
			cues, perr := cue.Parse(strings.NewReader(cueText))
			if perr != nil {
				return errorx.New(errorx.ModelOutputInvalid, "scheduler", "unparseable cue response: "+perr.Error(), perr)
			}
			path, werr := s.writeScratchCues(j, key, cues)
			if werr != nil {
				return werr
			}
			j.SetResult(s.clock, key, job.CueRef{Path: path, CueCount: len(cues)})
			return s.persist(j)
		}

		var fault *errorx.Fault
		if !errors.As(err, &fault) {
			return err
		}

		switch fault.Kind {
		case errorx.QuotaExceeded:
			s.metrics.quotaPausesTotal.Inc()
			until := s.clock.Now().Add(s.cfg.QuotaCooldown)
			j.PauseForQuota(s.clock, until)
			if perr := s.persist(j); perr != nil {
				return perr
			}
			// Free this generation slot for the cooldown window instead of
			// holding it idle; other units' generateUnit calls can use it
			// while this one waits out the quota.
			s.genSem.Release(1)
			werr := s.waitUntil(ctx, until)
			if aerr := s.genSem.Acquire(ctx, 1); aerr != nil {
				return aerr
			}
			if werr != nil {
				return werr
			}
			continue
		case errorx.ModelOutputInvalid:
			s.metrics.retriesTotal.WithLabelValues(string(fault.Kind)).Inc()
			n := j.IncrementAttempt(s.clock, key)
			if perr := s.persist(j); perr != nil {
				return perr
			}
			if n >= s.cfg.MaxAttempts {
				return fault
			}
			continue
		default:
			return fault
		}
	}
}

func (s *Scheduler) waitUntil(ctx context.Context, until time.Time) error {
	d := time.Until(until)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) writeScratchCues(j *job.Job, key job.ResultKey, cues []cue.Cue) (string, error) {
	dir := filepath.Join(s.cfg.ScratchDir, j.ID, "cues")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("scheduler: create cue scratch dir: %w", err)
	}
	mode := key.Mode
	if mode == "" {
		mode = "default"
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_%s_%s.srt", key.SegmentIndex, key.Language, mode))

	tmp := path + ".tmp"
	f, err := os.Create(tmp) // #nosec G304 - path is built from job-owned scratch dir
	if err != nil {
		return "", fmt.Errorf("scheduler: create cue scratch file: %w", err)
	}
	if err := cue.EmitSRT(f, cues); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("scheduler: write cue scratch file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("scheduler: sync cue scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("scheduler: close cue scratch file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("scheduler: rename cue scratch file: %w", err)
	}
	return path, nil
}

// --- Generated -> Merged ---

func (s *Scheduler) mergeStage(ctx context.Context, j *job.Job) error {
	return s.advance(j, job.StageMerged)
}

// mergedCuesForTarget reassembles one target's merged sequence from the
// per-segment scratch files recorded in PerChunkResults.
func (s *Scheduler) mergedCuesForTarget(j *job.Job, target job.Target) ([]cue.Cue, error) {
	var perSegment [][]cue.Cue
	for _, seg := range j.Segments {
		key := job.ResultKey{SegmentIndex: seg.Index, Language: target.Language, Mode: target.Mode}
		ref, ok := j.PerChunkResults[key]
		if !ok {
			return nil, fmt.Errorf("scheduler: missing generation result for segment %d target %s/%s", seg.Index, target.Language, target.Mode)
		}
		f, err := os.Open(ref.Path) // #nosec G304 - path is scheduler-owned scratch file
		if err != nil {
			return nil, fmt.Errorf("scheduler: open cue scratch file: %w", err)
		}
		cues, err := cue.Parse(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("scheduler: reparse cue scratch file: %w", err)
		}
		perSegment = append(perSegment, merge.Offset(cues, seg))
	}
	return merge.Merge(perSegment, s.cfg.Quality.MaxCueDuration, s.logger), nil
}

// --- Merged -> Validated2 ---

// qualityAttemptSegmentIndex is a sentinel that keeps a target's
// whole-sequence quality-retry attempt counter from colliding with the
// real per-segment generation attempt counters, which are keyed by actual
// segment index starting at 0.
const qualityAttemptSegmentIndex = -1

func (s *Scheduler) validateQuality(ctx context.Context, j *job.Job) error {
	sourceLanguage := "" // the source track's spoken language is not modeled; empty makes quality.Evaluate skip linguistic/cultural scoring for every target
	for _, target := range j.Targets {
		cues, err := s.mergedCuesForTarget(j, target)
		if err != nil {
			return s.failJob(j, errorx.Record{Kind: errorx.StructuralInvariant, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
		}

		attemptKey := job.ResultKey{SegmentIndex: qualityAttemptSegmentIndex, Language: target.Language, Mode: target.Mode}
		attempt := j.AttemptCount(attemptKey) + 1

		result, err := quality.Evaluate(ctx, cues, time.Duration(mediaDurationSeconds(j)*float64(time.Second)),
			sourceLanguage, target.Language, attempt, s.cfg.Quality, s.scorer)
		if err != nil {
			return s.failJob(j, errorx.Record{Kind: errorx.TransientIO, Component: "scheduler", Message: "quality scorer call failed: " + err.Error(), At: s.clock.Now()})
		}

		switch result.Verdict {
		case quality.VerdictAccept:
			continue
		case quality.VerdictRetry:
			j.IncrementAttempt(s.clock, attemptKey)
			j.ClearResults(s.clock, resultKeysForTarget(j, target))
			if err := s.persist(j); err != nil {
				return err
			}
			return s.advance(j, job.StageUploaded)
		default:
			kind := errorx.QualityBelowThreshold
			if result.Structural {
				kind = errorx.StructuralInvariant
			}
			return s.failJob(j, errorx.Record{Kind: kind, Component: "scheduler", Message: strings.Join(result.Reasons, "; "), At: s.clock.Now()})
		}
	}
	return s.advance(j, job.StageValidated2)
}

func resultKeysForTarget(j *job.Job, target job.Target) []job.ResultKey {
	keys := make([]job.ResultKey, 0, len(j.Segments))
	for _, seg := range j.Segments {
		keys = append(keys, job.ResultKey{SegmentIndex: seg.Index, Language: target.Language, Mode: target.Mode})
	}
	return keys
}

func mediaDurationSeconds(j *job.Job) float64 {
	if j.Media == nil {
		return 0
	}
	return j.Media.Duration
}

// --- Validated2 -> Emitted ---

func (s *Scheduler) emit(ctx context.Context, j *job.Job) error {
	jobBase := filepath.Base(strings.TrimSuffix(j.SourcePath, filepath.Ext(j.SourcePath)))
	outDir := filepath.Join(s.cfg.OutputDir, jobBase)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return s.failJob(j, errorx.Record{Kind: errorx.DiskExhausted, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
	}

	for _, target := range j.Targets {
		cues, err := s.mergedCuesForTarget(j, target)
		if err != nil {
			return s.failJob(j, errorx.Record{Kind: errorx.StructuralInvariant, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
		}

		suffix := target.Language
		if target.Mode != "" {
			suffix += "_" + target.Mode
		}
		srtPath := filepath.Join(outDir, fmt.Sprintf("%s_%s.srt", jobBase, suffix))
		vttPath := filepath.Join(outDir, fmt.Sprintf("%s_%s.vtt", jobBase, suffix))

		if err := writeAtomic(srtPath, func(f *os.File) error { return cue.EmitSRT(f, cues) }); err != nil {
			return s.failJob(j, errorx.Record{Kind: errorx.DiskExhausted, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
		}
		if err := writeAtomic(vttPath, func(f *os.File) error { return cue.EmitVTT(f, cues) }); err != nil {
			return s.failJob(j, errorx.Record{Kind: errorx.DiskExhausted, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
		}

		j.SetOutputs(s.clock, target, job.OutputPaths{SRTPath: srtPath, VTTPath: vttPath})
	}

	infoPath := filepath.Join(outDir, fmt.Sprintf("%s_info.txt", jobBase))
	if err := writeAtomic(infoPath, func(f *os.File) error { return writeJobInfo(f, j, s.clock.Now()) }); err != nil {
		return s.failJob(j, errorx.Record{Kind: errorx.DiskExhausted, Component: "scheduler", Message: err.Error(), At: s.clock.Now()})
	}

	if err := s.persist(j); err != nil {
		return err
	}
	return s.advance(j, job.StageEmitted)
}

// writeJobInfo renders a human-readable summary of a completed job: its
// source, targets, and the output files produced for each.
func writeJobInfo(f *os.File, j *job.Job, emittedAt time.Time) error {
	fmt.Fprintf(f, "job:           %s\n", j.ID)
	fmt.Fprintf(f, "source:        %s\n", j.SourcePath)
	fmt.Fprintf(f, "created:       %s\n", j.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "emitted:       %s\n", emittedAt.UTC().Format(time.RFC3339))
	if j.Media != nil {
		fmt.Fprintf(f, "duration:      %.3fs\n", j.Media.Duration)
		fmt.Fprintf(f, "resolution:    %dx%d\n", j.Media.Width, j.Media.Height)
		fmt.Fprintf(f, "codec:         %s\n", j.Media.Codec)
	}
	fmt.Fprintf(f, "segments:      %d\n", len(j.Segments))
	fmt.Fprintf(f, "targets:\n")
	for _, target := range j.Targets {
		label := target.Language
		if target.Mode != "" {
			label += ":" + target.Mode
		}
		paths := j.Outputs[target]
		fmt.Fprintf(f, "  - %s\n", label)
		fmt.Fprintf(f, "      srt: %s\n", paths.SRTPath)
		fmt.Fprintf(f, "      vtt: %s\n", paths.VTTPath)
	}
	return nil
}

func writeAtomic(path string, write func(f *os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp) // #nosec G304 - path is built from operator-configured output dir
	if err != nil {
		return fmt.Errorf("scheduler: create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("scheduler: write output file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("scheduler: sync output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("scheduler: close output file: %w", err)
	}
	return os.Rename(tmp, path)
}
