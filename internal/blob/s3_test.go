package blob

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewS3Adapter(t *testing.T) {
	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	a, err := NewS3Adapter(cfg, nil)
	if err != nil {
		t.Fatalf("NewS3Adapter() error = %v", err)
	}
	if a.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", a.bucket, cfg.Bucket)
	}
	if a.breaker == nil {
		t.Error("expected a circuit breaker to be configured")
	}
}

func TestS3Adapter_Put_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected method: %s", r.Method)
		}
	}))
	defer server.Close()

	a, err := newTestAdapter(server.URL)
	if err != nil {
		t.Fatalf("newTestAdapter: %v", err)
	}

	local := filepath.Join(t.TempDir(), "segment.mp4")
	if err := os.WriteFile(local, []byte("clip bytes"), 0o600); err != nil {
		t.Fatalf("write local file: %v", err)
	}

	ref, err := a.Put(context.Background(), "job-1", "segments/0.mp4", local)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref.Namespace != "job-1" || ref.Key != "segments/0.mp4" {
		t.Errorf("unexpected ref: %+v", ref)
	}
}

func TestS3Adapter_Exists_MockServer(t *testing.T) {
	t.Run("object present", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		a, err := newTestAdapter(server.URL)
		if err != nil {
			t.Fatalf("newTestAdapter: %v", err)
		}
		exists, err := a.Exists(context.Background(), "job-1", "segments/0.mp4")
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if !exists {
			t.Error("expected exists=true")
		}
	})

	t.Run("object absent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("x-amz-error-code", "NotFound")
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		a, err := newTestAdapter(server.URL)
		if err != nil {
			t.Fatalf("newTestAdapter: %v", err)
		}
		exists, err := a.Exists(context.Background(), "job-1", "segments/0.mp4")
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if exists {
			t.Error("expected exists=false")
		}
	})
}

func TestS3Adapter_DeletePrefix_EmptyListing(t *testing.T) {
	const emptyListing = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>test-bucket</Name>
  <Prefix>job-1/</Prefix>
  <KeyCount>0</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
</ListBucketResult>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET for list-objects, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, emptyListing)
	}))
	defer server.Close()

	a, err := newTestAdapter(server.URL)
	if err != nil {
		t.Fatalf("newTestAdapter: %v", err)
	}
	if err := a.DeletePrefix(context.Background(), "job-1"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
}

func TestClassify_DistinguishesFatalFromRetryable(t *testing.T) {
	if isRetryable(classify(&fakeHTTPError{code: 403})) {
		t.Error("expected 403 to be classified as fatal (non-retryable)")
	}
	if !isRetryable(classify(&fakeHTTPError{code: 503})) {
		t.Error("expected 503 to be classified as retryable")
	}
	if !isRetryable(classify(&fakeHTTPError{code: 429})) {
		t.Error("expected 429 to be classified as retryable")
	}
}

type fakeHTTPError struct{ code int }

func (e *fakeHTTPError) Error() string       { return fmt.Sprintf("http status %d", e.code) }
func (e *fakeHTTPError) HTTPStatusCode() int { return e.code }

func newTestAdapter(endpoint string) (*S3Adapter, error) {
	return NewS3Adapter(S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}, nil)
}
