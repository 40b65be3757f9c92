package jobstore

import (
	"sync"
	"time"

	"github.com/maauso/subtitlegen/internal/job"
)

// MemoryStore is a non-durable Store backed by a map, used in tests where
// durability doesn't matter. Every
// operation clones on the way in and out so callers never share mutable
// state with the store's internal map.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*job.Job)}
}

func (s *MemoryStore) Create(j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) Load(id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryStore) Save(j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return ErrJobNotFound
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) ListActive() ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*job.Job
	for _, j := range s.jobs {
		if !j.IsTerminal() {
			out = append(out, j.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) ListTerminal(before time.Time) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*job.Job
	for _, j := range s.jobs {
		if j.IsTerminal() && j.UpdatedAt.Before(before) {
			out = append(out, j.Clone())
		}
	}
	return out, nil
}
