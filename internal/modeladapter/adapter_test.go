package modeladapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	if err := os.Setenv("MODEL_API_KEY", "test-key"); err != nil {
		t.Fatalf("failed to set env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("MODEL_API_KEY") })
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusInQueue, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
		{StatusTimedOut, true},
		{Status("UNKNOWN"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("Status(%q).IsTerminal() = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestNewHTTPBackend_MissingEndpointID(t *testing.T) {
	setTestEnv(t)
	if _, err := NewHTTPBackend(""); err == nil {
		t.Error("expected error for missing endpoint ID")
	}
}

func TestNewHTTPBackend_MissingAPIKey(t *testing.T) {
	_ = os.Unsetenv("MODEL_API_KEY")
	if _, err := NewHTTPBackend("test-endpoint"); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewHTTPBackend_WithAPIKeyOptionOverridesEnv(t *testing.T) {
	setTestEnv(t)
	b, err := NewHTTPBackend("test-endpoint", WithAPIKey("explicit-api-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.apiKey != "explicit-api-key" {
		t.Errorf("expected apiKey to be 'explicit-api-key', got %q", b.apiKey)
	}
}

func TestHTTPBackend_Submit_Success(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input.SegmentRef != "job-1/segments/0.mp4" {
			t.Errorf("unexpected segment ref: %s", req.Input.SegmentRef)
		}
		if req.Input.Language != "spa" {
			t.Errorf("unexpected language: %s", req.Input.Language)
		}

		_ = json.NewEncoder(w).Encode(submitResponse{ID: "job-123"})
	}))
	defer server.Close()

	b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL))
	jobID, err := b.Submit(context.Background(), "job-1/segments/0.mp4", "spa", "translate", "template body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-123" {
		t.Errorf("expected job-123, got %s", jobID)
	}
}

func TestHTTPBackend_Submit_ErrorResponse(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(submitResponse{Error: "invalid input"})
	}))
	defer server.Close()

	b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL))
	if _, err := b.Submit(context.Background(), "ref", "spa", "translate", "tmpl"); err == nil {
		t.Error("expected error")
	}
}

func TestHTTPBackend_Submit_ContextCancelled(t *testing.T) {
	setTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := b.Submit(ctx, "ref", "spa", "translate", "tmpl"); err == nil {
		t.Error("expected error due to context cancellation")
	}
}

func TestHTTPBackend_Poll_AllStatuses(t *testing.T) {
	setTestEnv(t)

	tests := []struct {
		name           string
		response       statusResponse
		expectedStatus Status
		expectedCue    string
		expectedError  string
	}{
		{name: "IN_QUEUE", response: statusResponse{Status: "IN_QUEUE"}, expectedStatus: StatusInQueue},
		{name: "RUNNING", response: statusResponse{Status: "RUNNING"}, expectedStatus: StatusRunning},
		{
			name:           "COMPLETED",
			response:       statusResponse{Status: "COMPLETED", Output: statusOutput{CueText: "1\n00:00:00,000 --> 00:00:01,000\nhi\n"}},
			expectedStatus: StatusCompleted,
			expectedCue:    "1\n00:00:00,000 --> 00:00:01,000\nhi\n",
		},
		{name: "FAILED", response: statusResponse{Status: "FAILED", Error: "bad output"}, expectedStatus: StatusFailed, expectedError: "bad output"},
		{name: "CANCELLED", response: statusResponse{Status: "CANCELLED"}, expectedStatus: StatusCancelled},
		{name: "TIMED_OUT", response: statusResponse{Status: "TIMED_OUT"}, expectedStatus: StatusTimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL))
			result, err := b.Poll(context.Background(), "job-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.expectedStatus {
				t.Errorf("expected status %v, got %v", tt.expectedStatus, result.Status)
			}
			if result.CueText != tt.expectedCue {
				t.Errorf("expected cue text %q, got %q", tt.expectedCue, result.CueText)
			}
			if result.Error != tt.expectedError {
				t.Errorf("expected error %q, got %q", tt.expectedError, result.Error)
			}
		})
	}
}

func TestHTTPBackend_Poll_EmptyJobID(t *testing.T) {
	setTestEnv(t)
	b, _ := NewHTTPBackend("test-endpoint")
	if _, err := b.Poll(context.Background(), ""); err == nil {
		t.Error("expected error for empty job ID")
	}
}

func TestHTTPBackend_Retry_TransientFailure(t *testing.T) {
	setTestEnv(t)
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(statusResponse{Status: "COMPLETED"})
	}))
	defer server.Close()

	b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL), WithMaxRetries(3), WithBaseBackoff(5*time.Millisecond))
	result, err := b.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Errorf("expected COMPLETED, got %v", result.Status)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestHTTPBackend_Retry_MaxRetriesExceeded(t *testing.T) {
	setTestEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL), WithMaxRetries(2), WithBaseBackoff(5*time.Millisecond))
	if _, err := b.Poll(context.Background(), "job-1"); err == nil {
		t.Error("expected error after max retries exceeded")
	}
}

func TestHTTPBackend_Retry_NonRetryableError(t *testing.T) {
	setTestEnv(t)
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL), WithMaxRetries(3), WithBaseBackoff(5*time.Millisecond))
	if _, err := b.Poll(context.Background(), "job-1"); err == nil {
		t.Error("expected error")
	}
	if atomic.LoadInt32(&attempts) != 1 {
		t.Errorf("expected 1 attempt (no retries for 400), got %d", attempts)
	}
}

func TestHTTPBackend_QuotaStatusIsNotRetried(t *testing.T) {
	setTestEnv(t)
	var attempts int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	b, _ := NewHTTPBackend("test-endpoint", WithBaseURL(server.URL), WithMaxRetries(3), WithBaseBackoff(5*time.Millisecond))
	_, err := b.Poll(context.Background(), "job-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("expected quota faults to surface immediately without retry, got %d attempts", attempts)
	}
}

func TestWithHTTPClient(t *testing.T) {
	setTestEnv(t)
	customClient := &http.Client{Timeout: 60 * time.Second}
	b, err := NewHTTPBackend("test-endpoint", WithHTTPClient(customClient))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.httpClient != customClient {
		t.Error("expected custom HTTP client to be set")
	}
}
