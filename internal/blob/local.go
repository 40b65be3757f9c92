package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalAdapter implements Adapter against local disk, namespaces mapping to
// subdirectories. It is used for local development and as the fake backing
// the blob-dependent tests of every other component.
type LocalAdapter struct {
	baseDir string
}

// NewLocalAdapter creates a LocalAdapter rooted at baseDir. The directory is
// created if it doesn't exist.
func NewLocalAdapter(baseDir string) (*LocalAdapter, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("blob: create base dir: %w", err)
	}
	return &LocalAdapter{baseDir: baseDir}, nil
}

func (a *LocalAdapter) path(namespace, key string) string {
	return filepath.Join(a.baseDir, namespace, key)
}

// Put writes localPath's content to namespace/key. If a blob already exists
// at that key with the same content hash, it succeeds without rewriting.
func (a *LocalAdapter) Put(ctx context.Context, namespace, key, localPath string) (RemoteRef, error) {
	ref := RemoteRef{Namespace: namespace, Key: key}

	select {
	case <-ctx.Done():
		return RemoteRef{}, fmt.Errorf("blob: context cancelled: %w", ctx.Err())
	default:
	}

	localHash, err := hashFile(localPath)
	if err != nil {
		return RemoteRef{}, fmt.Errorf("blob: hash local file: %w", err)
	}

	dest := a.path(namespace, key)
	if remoteHash, err := hashFile(dest); err == nil && remoteHash == localHash {
		return ref, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return RemoteRef{}, fmt.Errorf("blob: create namespace dir: %w", err)
	}

	src, err := os.Open(localPath) // #nosec G304 - path supplied by the segmenter/uploader, not external input
	if err != nil {
		return RemoteRef{}, fmt.Errorf("blob: open local file: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return RemoteRef{}, fmt.Errorf("blob: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return RemoteRef{}, fmt.Errorf("blob: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return RemoteRef{}, fmt.Errorf("blob: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return RemoteRef{}, fmt.Errorf("blob: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return RemoteRef{}, fmt.Errorf("blob: rename into place: %w", err)
	}

	return ref, nil
}

// Exists reports whether a blob exists at namespace/key.
func (a *LocalAdapter) Exists(ctx context.Context, namespace, key string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("blob: context cancelled: %w", ctx.Err())
	default:
	}
	_, err := os.Stat(a.path(namespace, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("blob: stat: %w", err)
}

// DeletePrefix removes every blob under namespace.
func (a *LocalAdapter) DeletePrefix(ctx context.Context, namespace string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("blob: context cancelled: %w", ctx.Err())
	default:
	}
	if err := os.RemoveAll(filepath.Join(a.baseDir, namespace)); err != nil {
		return fmt.Errorf("blob: delete prefix: %w", err)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - paths are internally generated namespace/key pairs
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var _ Adapter = (*LocalAdapter)(nil)
