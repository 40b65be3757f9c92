package jobstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maauso/subtitlegen/internal/job"
)

// FileStore is the durable, crash-consistent Store. Save writes the
// serialized record to a sibling temp name, renames the current canonical
// file to a ".bak" sibling (if present), then renames the temp file to the
// canonical name — the file-rename primitive is the transaction, per
// spec §4.1 / §9. A single generation of backup is retained.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex // serializes directory-wide listing operations
	jobLocks sync.Map   // per-job locks so concurrent Save(jobID) calls don't interleave renames
}

// NewFileStore creates a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("jobstore: create store dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) canonicalPath(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *FileStore) backupPath(id string) string {
	return filepath.Join(s.dir, id+".yaml.bak")
}

func (s *FileStore) lockFor(id string) *sync.Mutex {
	v, _ := s.jobLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Create persists a brand-new job record.
func (s *FileStore) Create(j *job.Job) error {
	return s.writeThrough(j)
}

// Save persists an updated job record using the same crash-consistent
// algorithm as Create.
func (s *FileStore) Save(j *job.Job) error {
	return s.writeThrough(j)
}

func (s *FileStore) writeThrough(j *job.Job) error {
	lock := s.lockFor(j.ID)
	lock.Lock()
	defer lock.Unlock()

	data, err := yaml.Marshal(toRecord(j))
	if err != nil {
		return fmt.Errorf("jobstore: marshal job %s: %w", j.ID, err)
	}

	canonical := s.canonicalPath(j.ID)
	backup := s.backupPath(j.ID)

	tmp, err := os.CreateTemp(s.dir, j.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("jobstore: create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("jobstore: write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("jobstore: sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("jobstore: close temp record: %w", err)
	}

	if _, err := os.Stat(canonical); err == nil {
		_ = os.Remove(backup) // single backup generation: drop any older one first
		if err := os.Rename(canonical, backup); err != nil {
			_ = os.Remove(tmpName)
			return fmt.Errorf("jobstore: rotate backup for %s: %w", j.ID, err)
		}
	}

	if err := os.Rename(tmpName, canonical); err != nil {
		return fmt.Errorf("jobstore: rename temp into canonical for %s: %w", j.ID, err)
	}

	return nil
}

// Load reads a job record, falling back to the backup generation if the
// canonical file is absent or corrupt, per spec §4.1.
func (s *FileStore) Load(id string) (*job.Job, error) {
	canonical := s.canonicalPath(id)
	backup := s.backupPath(id)

	data, err := os.ReadFile(canonical)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("jobstore: read canonical for %s: %w", id, err)
		}
		return s.loadBackup(id, backup, nil)
	}

	var r record
	if err := yaml.Unmarshal(data, &r); err != nil {
		s.logger.Warn("corrupt canonical job record, falling back to backup",
			slog.String("job_id", id), slog.String("error", err.Error()))
		return s.loadBackup(id, backup, err)
	}
	if r.SchemaVersion != job.SchemaVersion {
		return nil, fmt.Errorf("%w: job %s has schema version %d, want %d", ErrUnknownSchemaVersion, id, r.SchemaVersion, job.SchemaVersion)
	}
	return fromRecord(&r), nil
}

func (s *FileStore) loadBackup(id, backup string, canonicalErr error) (*job.Job, error) {
	data, err := os.ReadFile(backup)
	if err != nil {
		if os.IsNotExist(err) {
			if canonicalErr != nil {
				return nil, fmt.Errorf("jobstore: canonical corrupt and backup missing for %s: %w", id, canonicalErr)
			}
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("jobstore: read backup for %s: %w", id, err)
	}
	var r record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("jobstore: both canonical and backup corrupt for %s: %w", id, err)
	}
	if r.SchemaVersion != job.SchemaVersion {
		return nil, fmt.Errorf("%w: job %s backup has schema version %d, want %d", ErrUnknownSchemaVersion, id, r.SchemaVersion, job.SchemaVersion)
	}
	return fromRecord(&r), nil
}

// ListActive loads every job whose stage is not terminal.
func (s *FileStore) ListActive() ([]*job.Job, error) {
	ids, err := s.listIDs()
	if err != nil {
		return nil, err
	}
	var out []*job.Job
	for _, id := range ids {
		j, err := s.Load(id)
		if err != nil {
			s.logger.Warn("skipping unreadable job record during ListActive",
				slog.String("job_id", id), slog.String("error", err.Error()))
			continue
		}
		if !j.IsTerminal() {
			out = append(out, j)
		}
	}
	return out, nil
}

// ListTerminal loads every terminal job last updated before the given time.
func (s *FileStore) ListTerminal(before time.Time) ([]*job.Job, error) {
	ids, err := s.listIDs()
	if err != nil {
		return nil, err
	}
	var out []*job.Job
	for _, id := range ids {
		j, err := s.Load(id)
		if err != nil {
			continue
		}
		if j.IsTerminal() && j.UpdatedAt.Before(before) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *FileStore) listIDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("jobstore: list store dir: %w", err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".yaml" {
			continue
		}
		id := name[:len(name)-len(".yaml")]
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
