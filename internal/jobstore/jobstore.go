// Package jobstore provides durable, crash-consistent persistence for
// job.Job records keyed by job ID.
package jobstore

import (
	"errors"
	"time"

	"github.com/maauso/subtitlegen/internal/job"
)

// ErrJobNotFound is returned when no record exists for a given job ID.
var ErrJobNotFound = errors.New("jobstore: job not found")

// ErrUnknownSchemaVersion is returned when a loaded record's schema_version
// doesn't match what this build understands. Per spec, this is fatal for
// that job — it is never silently coerced.
var ErrUnknownSchemaVersion = errors.New("jobstore: unknown schema version")

// Store is the durable job store port (C2). The store owns the canonical
// record; every other component holds only transient copies obtained via
// Load. Writes for a given job are serialized by the store itself:
// FileStore holds a per-job lock around each write, MemoryStore a
// store-wide lock.
type Store interface {
	Create(j *job.Job) error
	Load(id string) (*job.Job, error)
	Save(j *job.Job) error
	ListActive() ([]*job.Job, error)
	ListTerminal(before time.Time) ([]*job.Job, error)
}
