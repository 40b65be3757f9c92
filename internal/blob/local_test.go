package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLocalAdapter_CreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "base")
	a, err := NewLocalAdapter(base)
	if err != nil {
		t.Fatalf("NewLocalAdapter: %v", err)
	}
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		t.Error("expected base directory to be created")
	}
	_ = a
}

func TestLocalAdapter_PutThenExists(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAdapter: %v", err)
	}
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "segment.mp4")
	if err := os.WriteFile(local, []byte("clip bytes"), 0o600); err != nil {
		t.Fatalf("write local file: %v", err)
	}

	ref, err := a.Put(ctx, "job-1", "segments/0.mp4", local)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.Namespace != "job-1" || ref.Key != "segments/0.mp4" {
		t.Errorf("unexpected ref: %+v", ref)
	}

	exists, err := a.Exists(ctx, "job-1", "segments/0.mp4")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected blob to exist after Put")
	}

	missing, err := a.Exists(ctx, "job-1", "segments/1.mp4")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if missing {
		t.Error("expected non-existent key to report false")
	}
}

func TestLocalAdapter_PutIsIdempotentForMatchingContent(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAdapter: %v", err)
	}
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "segment.mp4")
	if err := os.WriteFile(local, []byte("same bytes"), 0o600); err != nil {
		t.Fatalf("write local file: %v", err)
	}

	if _, err := a.Put(ctx, "job-1", "segments/0.mp4", local); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := a.Put(ctx, "job-1", "segments/0.mp4", local); err != nil {
		t.Fatalf("second (idempotent) Put: %v", err)
	}
}

func TestLocalAdapter_PutOverwritesWhenContentDiffers(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAdapter: %v", err)
	}
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "segment.mp4")
	if err := os.WriteFile(local, []byte("version one"), 0o600); err != nil {
		t.Fatalf("write local file: %v", err)
	}
	if _, err := a.Put(ctx, "job-1", "segments/0.mp4", local); err != nil {
		t.Fatalf("first Put: %v", err)
	}

	if err := os.WriteFile(local, []byte("version two, longer content"), 0o600); err != nil {
		t.Fatalf("rewrite local file: %v", err)
	}
	if _, err := a.Put(ctx, "job-1", "segments/0.mp4", local); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	stored, err := os.ReadFile(filepath.Join(a.baseDir, "job-1", "segments/0.mp4"))
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if string(stored) != "version two, longer content" {
		t.Errorf("expected stored blob to be overwritten, got %q", stored)
	}
}

func TestLocalAdapter_DeletePrefixRemovesNamespace(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAdapter: %v", err)
	}
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "segment.mp4")
	if err := os.WriteFile(local, []byte("clip"), 0o600); err != nil {
		t.Fatalf("write local file: %v", err)
	}
	if _, err := a.Put(ctx, "job-2", "segments/0.mp4", local); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := a.DeletePrefix(ctx, "job-2"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}

	exists, err := a.Exists(ctx, "job-2", "segments/0.mp4")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected blob to be gone after DeletePrefix")
	}
}

func TestLocalAdapter_DeletePrefixOnMissingNamespaceIsNotAnError(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAdapter: %v", err)
	}
	if err := a.DeletePrefix(context.Background(), "never-existed"); err != nil {
		t.Errorf("expected no error deleting a non-existent namespace, got %v", err)
	}
}

func TestLocalAdapter_RespectsContextCancellation(t *testing.T) {
	a, err := NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAdapter: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Exists(ctx, "ns", "key"); err == nil {
		t.Error("expected error for cancelled context on Exists")
	}
	if err := a.DeletePrefix(ctx, "ns"); err == nil {
		t.Error("expected error for cancelled context on DeletePrefix")
	}
}
