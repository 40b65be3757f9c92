package reaper

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maauso/subtitlegen/internal/blob"
	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/errorx"
	"github.com/maauso/subtitlegen/internal/job"
	"github.com/maauso/subtitlegen/internal/jobstore"
)

type fakeBlobStore struct {
	deletePrefixErr error
	deletedPrefixes []string
}

func (f *fakeBlobStore) Put(ctx context.Context, namespace, key, localPath string) (blob.RemoteRef, error) {
	return blob.RemoteRef{Namespace: namespace, Key: key}, nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return true, nil
}

func (f *fakeBlobStore) DeletePrefix(ctx context.Context, namespace string) error {
	f.deletedPrefixes = append(f.deletedPrefixes, namespace)
	return f.deletePrefixErr
}

var _ blob.Adapter = (*fakeBlobStore)(nil)

func newTerminalJob(t *testing.T, c clock.Clock, scratchDir string) *job.Job {
	t.Helper()
	j := job.New(c, "/unused/source.mp4", []job.Target{{Language: "spa", Mode: ""}})
	jobDir := filepath.Join(scratchDir, j.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(jobDir, "scratch.txt"), []byte("leftover"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec := errorx.Record{Kind: errorx.TransientIO, Component: "test", Message: "forced failure", At: c.Now()}
	if err := j.Fail(c, rec); err != nil {
		t.Fatal(err)
	}
	return j
}

func TestCleanupJob_RemovesBlobPrefixAndScratchDir(t *testing.T) {
	scratchDir := t.TempDir()
	c := clock.System{}
	j := newTerminalJob(t, c, scratchDir)

	store := jobstore.NewMemoryStore()
	if err := store.Create(j); err != nil {
		t.Fatal(err)
	}

	blobStore := &fakeBlobStore{}
	r := New(store, blobStore, scratchDir, c, nil, DefaultConfig())

	if err := r.CleanupJob(context.Background(), j); err != nil {
		t.Fatalf("CleanupJob returned error: %v", err)
	}
	if len(blobStore.deletedPrefixes) != 1 || blobStore.deletedPrefixes[0] != j.ReservedBlobNamespace {
		t.Errorf("expected delete_prefix called with %s, got %v", j.ReservedBlobNamespace, blobStore.deletedPrefixes)
	}
	if _, err := os.Stat(filepath.Join(scratchDir, j.ID)); !os.IsNotExist(err) {
		t.Errorf("expected scratch directory removed, stat err: %v", err)
	}
	if j.CleanupPending {
		t.Error("expected cleanup_pending cleared on success")
	}
}

func TestCleanupJob_MarksPendingOnBlobFailure(t *testing.T) {
	scratchDir := t.TempDir()
	c := clock.System{}
	j := newTerminalJob(t, c, scratchDir)

	store := jobstore.NewMemoryStore()
	if err := store.Create(j); err != nil {
		t.Fatal(err)
	}

	blobStore := &fakeBlobStore{deletePrefixErr: os.ErrClosed}
	r := New(store, blobStore, scratchDir, c, nil, DefaultConfig())

	if err := r.CleanupJob(context.Background(), j); err == nil {
		t.Fatal("expected CleanupJob to surface the blob store failure")
	}
	if !j.CleanupPending {
		t.Error("expected cleanup_pending set after a failed delete_prefix")
	}
	// Scratch removal still happens even though the blob delete failed.
	if _, err := os.Stat(filepath.Join(scratchDir, j.ID)); !os.IsNotExist(err) {
		t.Errorf("expected scratch directory removed despite blob failure, stat err: %v", err)
	}
}

func TestCleanupJob_SkipsWhenKeepTempSet(t *testing.T) {
	scratchDir := t.TempDir()
	c := clock.System{}
	j := newTerminalJob(t, c, scratchDir)
	j.KeepTemp = true

	store := jobstore.NewMemoryStore()
	if err := store.Create(j); err != nil {
		t.Fatal(err)
	}

	blobStore := &fakeBlobStore{}
	r := New(store, blobStore, scratchDir, c, nil, DefaultConfig())

	if err := r.CleanupJob(context.Background(), j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blobStore.deletedPrefixes) != 0 {
		t.Error("expected delete_prefix not called when KeepTemp is set")
	}
	if _, err := os.Stat(filepath.Join(scratchDir, j.ID)); err != nil {
		t.Errorf("expected scratch directory preserved, stat err: %v", err)
	}
}

func TestSweep_RetriesOnlyPendingJobsPastRetention(t *testing.T) {
	scratchDir := t.TempDir()
	now := time.Now()
	old := clock.Fixed{At: now.Add(-48 * time.Hour)}
	recent := clock.Fixed{At: now.Add(-1 * time.Minute)}

	store := jobstore.NewMemoryStore()

	pendingOld := newTerminalJob(t, old, scratchDir)
	pendingOld.SetCleanupPending(old, true)
	if err := store.Create(pendingOld); err != nil {
		t.Fatal(err)
	}

	cleanOld := newTerminalJob(t, old, scratchDir)
	if err := store.Create(cleanOld); err != nil {
		t.Fatal(err)
	}

	pendingRecent := newTerminalJob(t, recent, scratchDir)
	pendingRecent.SetCleanupPending(recent, true)
	if err := store.Create(pendingRecent); err != nil {
		t.Fatal(err)
	}

	blobStore := &fakeBlobStore{}
	r := New(store, blobStore, scratchDir, clock.Fixed{At: now}, nil, Config{Retention: 24 * time.Hour, SweepInterval: time.Minute})

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}

	if len(blobStore.deletedPrefixes) != 1 || blobStore.deletedPrefixes[0] != pendingOld.ReservedBlobNamespace {
		t.Errorf("expected sweep to clean up only the old pending job, got %v", blobStore.deletedPrefixes)
	}
}
