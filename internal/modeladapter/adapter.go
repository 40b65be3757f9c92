package modeladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for backend operations.
var (
	ErrEndpointIDRequired = errors.New("modeladapter: endpoint ID is required")
	ErrAPIKeyNotSet       = errors.New("modeladapter: MODEL_API_KEY environment variable is not set")
	ErrJobIDRequired      = errors.New("modeladapter: job ID is required")
	ErrNoJobIDReturned    = errors.New("modeladapter: submit failed: no job ID returned")
	ErrSubmitFailed       = errors.New("modeladapter: submit failed")
	ErrServerError        = errors.New("modeladapter: server error")
	ErrRateLimited        = errors.New("modeladapter: rate limited")
	ErrQuotaExceeded      = errors.New("modeladapter: quota exceeded")
	ErrRequestFailed      = errors.New("modeladapter: request failed")
)

// Backend issues a single generation request and polls it to completion.
// HTTPBackend implements it against an asynchronous submit/poll API in the
// teacher's idiom; other backends (e.g. a synchronous LLM SDK) can satisfy
// it directly without a poll loop by reporting StatusCompleted immediately.
type Backend interface {
	Submit(ctx context.Context, segmentRef, language, mode, promptTemplate string) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (PollResult, error)
}

// HTTPBackend is the HTTP implementation of Backend against an async
// submit/poll generation API.
type HTTPBackend struct {
	apiKey      string
	endpointID  string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// HTTPBackendOption configures an HTTPBackend.
type HTTPBackendOption func(*HTTPBackend)

func WithAPIKey(key string) HTTPBackendOption {
	return func(b *HTTPBackend) { b.apiKey = key }
}

func WithHTTPClient(c *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) { b.httpClient = c }
}

func WithBaseURL(url string) HTTPBackendOption {
	return func(b *HTTPBackend) { b.baseURL = url }
}

func WithMaxRetries(n int) HTTPBackendOption {
	return func(b *HTTPBackend) { b.maxRetries = n }
}

func WithBaseBackoff(d time.Duration) HTTPBackendOption {
	return func(b *HTTPBackend) { b.baseBackoff = d }
}

// NewHTTPBackend creates a new HTTPBackend. If no WithAPIKey option is
// given, the key is read from MODEL_API_KEY.
func NewHTTPBackend(endpointID string, opts ...HTTPBackendOption) (*HTTPBackend, error) {
	if endpointID == "" {
		return nil, ErrEndpointIDRequired
	}

	b := &HTTPBackend{
		endpointID:  endpointID,
		baseURL:     "https://api.modelhost.example/v2",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.apiKey == "" {
		b.apiKey = os.Getenv("MODEL_API_KEY")
	}
	if b.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	return b, nil
}

// Submit dispatches a generation request and returns the backend job ID.
func (b *HTTPBackend) Submit(ctx context.Context, segmentRef, language, mode, promptTemplate string) (string, error) {
	reqBody := submitRequest{Input: submitInput{
		SegmentRef:     segmentRef,
		Language:       language,
		Mode:           mode,
		PromptTemplate: promptTemplate,
	}}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("modeladapter: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/run", b.baseURL, b.endpointID)

	var resp submitResponse
	if err := b.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
		}
		return "", ErrNoJobIDReturned
	}
	return resp.ID, nil
}

// Poll checks the status of a submitted job.
func (b *HTTPBackend) Poll(ctx context.Context, jobID string) (PollResult, error) {
	if jobID == "" {
		return PollResult{}, ErrJobIDRequired
	}

	url := fmt.Sprintf("%s/%s/status/%s", b.baseURL, b.endpointID, jobID)

	var resp statusResponse
	if err := b.doRequestWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	var mapped Status
	switch resp.Status {
	case "IN_PROGRESS":
		mapped = StatusInProgress
	case "IN_QUEUE":
		mapped = StatusInQueue
	case "RUNNING":
		mapped = StatusRunning
	case "COMPLETED":
		mapped = StatusCompleted
	case "FAILED":
		mapped = StatusFailed
	case "CANCELLED":
		mapped = StatusCancelled
	case "TIMED_OUT":
		mapped = StatusTimedOut
	default:
		mapped = Status(resp.Status)
	}

	result := PollResult{Status: mapped}
	switch mapped {
	case StatusCompleted:
		result.CueText = resp.Output.CueText
	case StatusFailed:
		result.Error = resp.Error
	}
	return result, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (b *HTTPBackend) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := b.baseBackoff

	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("modeladapter: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := b.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}
		if !isRetryableHTTP(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("modeladapter: max retries exceeded: %w", lastErr)
}

func (b *HTTPBackend) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("modeladapter: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return &retryableHTTPError{err: fmt.Errorf("modeladapter: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableHTTPError{err: fmt.Errorf("modeladapter: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch {
		case resp.StatusCode == 402 || resp.StatusCode == 429:
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, string(respBody))
		case resp.StatusCode >= 500:
			return &retryableHTTPError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		default:
			return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("modeladapter: unmarshal response: %w", err)
		}
	}
	return nil
}

type retryableHTTPError struct{ err error }

func (e *retryableHTTPError) Error() string { return e.err.Error() }
func (e *retryableHTTPError) Unwrap() error { return e.err }

func isRetryableHTTP(err error) bool {
	var re *retryableHTTPError
	return errors.As(err, &re)
}

var _ Backend = (*HTTPBackend)(nil)
