// Package reaper implements the Cleanup Reaper (C11): it releases a job's
// remote blob namespace and local scratch directory once the job reaches a
// terminal stage, and periodically re-sweeps any terminal job that is older
// than retention and still marked cleanup_pending because an earlier
// cleanup failed.
package reaper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maauso/subtitlegen/internal/blob"
	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/job"
	"github.com/maauso/subtitlegen/internal/jobstore"
)

// DefaultRetention is the spec default for RETENTION_S: how long a terminal
// job's record is left untouched before the periodic sweep reconsiders it.
const DefaultRetention = 24 * time.Hour

// DefaultSweepInterval is the cadence of the periodic Sweep loop.
const DefaultSweepInterval = 10 * time.Minute

// Config bounds the reaper's periodic sweep.
type Config struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the spec defaults.
func DefaultConfig() Config {
	return Config{Retention: DefaultRetention, SweepInterval: DefaultSweepInterval}
}

// Reaper deletes a terminal job's blob namespace and scratch directory. It
// does not remove the job record itself; that is a separate archive
// operation out of scope here.
type Reaper struct {
	store      jobstore.Store
	blobStore  blob.Adapter
	scratchDir string
	clock      clock.Clock
	logger     *slog.Logger
	cfg        Config
}

// New creates a Reaper. scratchDir is the root under which each job keeps a
// subdirectory named by job ID (matching the scheduler's ScratchDir layout).
func New(store jobstore.Store, blobStore blob.Adapter, scratchDir string, c clock.Clock, logger *slog.Logger, cfg Config) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Reaper{
		store:      store,
		blobStore:  blobStore,
		scratchDir: scratchDir,
		clock:      c,
		logger:     logger,
		cfg:        cfg,
	}
}

// CleanupJob runs the reaper's two actions for a single job: delete_prefix
// against its blob namespace, and a recursive removal of its scratch
// directory. Called by the scheduler immediately on terminal transition, and
// again by Sweep for any job left with cleanup_pending.
//
// A job with KeepTemp set is left untouched, for debugging a failed run.
func (r *Reaper) CleanupJob(ctx context.Context, j *job.Job) error {
	if j.KeepTemp {
		return nil
	}

	blobErr := r.blobStore.DeletePrefix(ctx, j.ReservedBlobNamespace)
	if blobErr != nil {
		r.logger.Warn("reaper: delete_prefix failed, marking cleanup_pending",
			"job_id", j.ID, "namespace", j.ReservedBlobNamespace, "error", blobErr)
	}

	scratchErr := os.RemoveAll(filepath.Join(r.scratchDir, j.ID))
	if scratchErr != nil {
		r.logger.Warn("reaper: scratch removal failed, marking cleanup_pending",
			"job_id", j.ID, "error", scratchErr)
	}

	pending := blobErr != nil || scratchErr != nil
	j.SetCleanupPending(r.clock, pending)
	if err := r.store.Save(j); err != nil {
		return err
	}
	if pending {
		if blobErr != nil {
			return blobErr
		}
		return scratchErr
	}
	return nil
}

// Sweep scans the terminal jobs whose record is older than Retention and
// retries cleanup for the ones still marked cleanup_pending from a prior
// failed attempt. A terminal job without cleanup_pending (including one
// whose inline CleanupJob call was never reached) is not revisited, and a
// pending job younger than Retention waits for a later sweep.
func (r *Reaper) Sweep(ctx context.Context) error {
	terminal, err := r.store.ListTerminal(r.clock.Now().Add(-r.cfg.Retention))
	if err != nil {
		return err
	}

	var firstErr error
	for _, j := range terminal {
		if !j.CleanupPending {
			continue
		}
		if err := r.CleanupJob(ctx, j); err != nil && firstErr == nil {
			firstErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return firstErr
}

// Run drives Sweep on cfg.SweepInterval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("reaper: sweep failed", "error", err)
			}
		}
	}
}
