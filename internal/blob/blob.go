// Package blob implements the Blob Adapter (C5): idempotent put, existence
// check, and prefix deletion against an opaque object store, with capped
// exponential backoff around transient faults and a fixed classification of
// retryable versus fatal errors.
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RemoteRef is an opaque pointer to a blob once it has been put, handed off
// to the Model Adapter as a segment reference.
type RemoteRef struct {
	Namespace string
	Key       string
}

// Adapter is the object-store port every pipeline component depends on.
type Adapter interface {
	Put(ctx context.Context, namespace, key, localPath string) (RemoteRef, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	DeletePrefix(ctx context.Context, namespace string) error
}

// PerBlobTimeout bounds a single Put/Exists/DeletePrefix call.
const PerBlobTimeout = 5 * time.Minute

// Retry policy: capped exponential backoff, initial 1s, factor 2, cap 30s,
// at most 5 attempts.
const (
	initialBackoff = 1 * time.Second
	backoffFactor  = 2
	backoffCap     = 30 * time.Second
	maxAttempts    = 5
)

// retryableError marks a fault the retry loop should retry; anything else
// (auth, permission, malformed request) is treated as fatal and surfaces
// immediately.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error { return &retryableError{err: err} }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// withRetry runs op with capped exponential backoff, retrying only faults
// op wraps via retryable(). Fatal faults and context cancellation return
// immediately.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("blob: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= backoffFactor
				if backoff > backoffCap {
					backoff = backoffCap
				}
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("blob: max retries exceeded: %w", lastErr)
}
