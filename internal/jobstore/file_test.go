package jobstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/job"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStore_CreateLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	c := clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	j := job.NewWithID(c, "job-1", "/in/a.mp4", []job.Target{{Language: "fra"}, {Language: "deu", Mode: "sdh"}})
	j.SetSegments(c, []job.Segment{{Index: 0, Start: 0, Duration: 60, Checksum: "abc"}})
	j.MarkUploaded(c, 0)
	j.IncrementAttempt(c, job.ResultKey{SegmentIndex: 0, Language: "fra"})

	if err := s.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := s.Load("job-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SourcePath != j.SourcePath {
		t.Errorf("SourcePath mismatch: %q vs %q", loaded.SourcePath, j.SourcePath)
	}
	if len(loaded.Targets) != 2 {
		t.Errorf("expected 2 targets, got %d", len(loaded.Targets))
	}
	if !loaded.Uploaded[0] {
		t.Error("expected segment 0 to be uploaded")
	}
	key := job.ResultKey{SegmentIndex: 0, Language: "fra"}
	if loaded.AttemptCount(key) != 1 {
		t.Errorf("expected attempt count 1, got %d", loaded.AttemptCount(key))
	}
}

func TestFileStore_LoadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("nope")
	if err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestFileStore_SaveRotatesSingleBackupGeneration(t *testing.T) {
	s := newTestStore(t)
	c := clock.Fixed{At: time.Now()}
	j := job.NewWithID(c, "job-2", "/in/a.mp4", nil)

	if err := s.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	j.Stage = job.StageValidated
	if err := s.Save(j); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	j.Stage = job.StageSegmented
	if err := s.Save(j); err != nil {
		t.Fatalf("Save 2: %v", err)
	}

	if _, err := os.Stat(s.backupPath("job-2")); err != nil {
		t.Errorf("expected a backup file to exist: %v", err)
	}
	entries, _ := os.ReadDir(s.dir)
	bakCount := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".bak" {
			bakCount++
		}
	}
	if bakCount != 1 {
		t.Errorf("expected exactly one backup generation, found %d", bakCount)
	}
}

func TestFileStore_LoadFallsBackToBackupWhenCanonicalCorrupt(t *testing.T) {
	s := newTestStore(t)
	c := clock.Fixed{At: time.Now()}
	j := job.NewWithID(c, "job-3", "/in/a.mp4", nil)
	if err := s.Create(j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	j.Stage = job.StageValidated
	if err := s.Save(j); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// corrupt the canonical file; the backup generation from Create should
	// still be readable and stand in as canonical.
	if err := os.WriteFile(s.canonicalPath("job-3"), []byte("not: [valid yaml"), 0600); err != nil {
		t.Fatalf("corrupt canonical: %v", err)
	}

	loaded, err := s.Load("job-3")
	if err != nil {
		t.Fatalf("expected fallback load to succeed, got %v", err)
	}
	if loaded.Stage != job.StageNew {
		t.Errorf("expected backup to carry the pre-Save stage New, got %s", loaded.Stage)
	}
}

func TestFileStore_ListActiveAndTerminal(t *testing.T) {
	s := newTestStore(t)
	c := clock.Fixed{At: time.Now().Add(-2 * time.Hour)}

	active := job.NewWithID(c, "active-1", "/in/a.mp4", nil)
	if err := s.Create(active); err != nil {
		t.Fatal(err)
	}

	done := job.NewWithID(c, "done-1", "/in/b.mp4", nil)
	done.Stage = job.StageCompleted
	if err := s.Create(done); err != nil {
		t.Fatal(err)
	}

	activeList, err := s.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(activeList) != 1 || activeList[0].ID != "active-1" {
		t.Errorf("expected [active-1], got %+v", activeList)
	}

	terminalList, err := s.ListTerminal(time.Now())
	if err != nil {
		t.Fatalf("ListTerminal: %v", err)
	}
	if len(terminalList) != 1 || terminalList[0].ID != "done-1" {
		t.Errorf("expected [done-1], got %+v", terminalList)
	}
}
