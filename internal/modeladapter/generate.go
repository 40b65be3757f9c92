package modeladapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/maauso/subtitlegen/internal/blob"
	"github.com/maauso/subtitlegen/internal/clock"
	"github.com/maauso/subtitlegen/internal/errorx"
	"github.com/maauso/subtitlegen/internal/modeladapter/prompt"
)

// DefaultMaxModelRetries is the spec default for MAX_MODEL_RETRIES.
const DefaultMaxModelRetries = 3

// DefaultPollInterval is the cadence between successive Poll calls while a
// submitted job is in flight.
const DefaultPollInterval = 2 * time.Second

// GenerateRequest names the unit of generation work: a segment blob
// reference, its content checksum (for fingerprinting), and the target
// (language, mode) pair.
type GenerateRequest struct {
	SegmentRef      blob.RemoteRef
	SegmentChecksum string
	Language        string
	Mode            string
}

// Adapter is the Model Adapter: it fingerprints a request, memoizes
// in-flight identical requests, and drives the backend's submit/poll
// protocol to completion.
type Adapter struct {
	backend         Backend
	templates       *prompt.Registry
	modelIdentifier string
	maxRetries      int
	pollInterval    time.Duration
	group           singleflight.Group
}

// Option configures an Adapter at construction time.
type Option func(*Adapter)

// WithPollInterval overrides the cadence between Poll calls; tests use this
// to drive the poll loop without waiting on DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) { a.pollInterval = d }
}

// New creates an Adapter. maxRetries <= 0 selects DefaultMaxModelRetries.
func New(backend Backend, templates *prompt.Registry, modelIdentifier string, maxRetries int, opts ...Option) *Adapter {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxModelRetries
	}
	a := &Adapter{
		backend:         backend,
		templates:       templates,
		modelIdentifier: modelIdentifier,
		maxRetries:      maxRetries,
		pollInterval:    DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate returns the raw cue text for one (segment, language, mode) unit.
// Concurrent calls with an identical fingerprint share a single in-flight
// request.
func (a *Adapter) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	tmpl, ok := a.templates.Lookup(req.Language, req.Mode)
	if !ok {
		return "", errorx.New(errorx.InvalidInput, "modeladapter",
			fmt.Sprintf("no prompt template registered for language=%s mode=%s", req.Language, req.Mode), nil)
	}

	fp := clock.Fingerprint(req.SegmentChecksum, req.Language, req.Mode, tmpl.Version, a.modelIdentifier)

	v, err, _ := a.group.Do(fp, func() (interface{}, error) {
		return a.generateOnce(ctx, req, tmpl)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// generateOnce retries only faults whose policy is internal-retry
// (TransientIO): everything else — InvalidInput, AuthFault, QuotaExceeded,
// ModelOutputInvalid, Cancelled — is the scheduler's call and propagates on
// the first attempt.
func (a *Adapter) generateOnce(ctx context.Context, req GenerateRequest, tmpl prompt.Template) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		cueText, err := a.attempt(ctx, req, tmpl)
		if err == nil {
			return cueText, nil
		}

		var fault *errorx.Fault
		if !errors.As(err, &fault) || errorx.PolicyFor(fault.Kind).Disposition != errorx.DispositionInternal {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

func (a *Adapter) attempt(ctx context.Context, req GenerateRequest, tmpl prompt.Template) (string, error) {
	jobID, err := a.backend.Submit(ctx, segmentRefString(req.SegmentRef), req.Language, req.Mode, tmpl.Body)
	if err != nil {
		return "", classifySubmitError(err)
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", errorx.New(errorx.Cancelled, "modeladapter", "context cancelled while polling", ctx.Err())
		case <-ticker.C:
			result, err := a.backend.Poll(ctx, jobID)
			if err != nil {
				if errors.Is(err, ErrQuotaExceeded) {
					return "", errorx.New(errorx.QuotaExceeded, "modeladapter", "quota exceeded", err)
				}
				return "", errorx.New(errorx.TransientIO, "modeladapter", "poll failed", err)
			}
			switch result.Status {
			case StatusCompleted:
				return result.CueText, nil
			case StatusFailed, StatusCancelled, StatusTimedOut:
				return "", errorx.New(errorx.ModelOutputInvalid, "modeladapter", "generation job ended unsuccessfully: "+result.Error, nil)
			default:
				continue
			}
		}
	}
}

func classifySubmitError(err error) error {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return errorx.New(errorx.QuotaExceeded, "modeladapter", "quota exceeded", err)
	case errors.Is(err, ErrAPIKeyNotSet), errors.Is(err, ErrEndpointIDRequired):
		return errorx.New(errorx.AuthFault, "modeladapter", "authentication misconfigured", err)
	default:
		return errorx.New(errorx.TransientIO, "modeladapter", "submit failed", err)
	}
}

func segmentRefString(ref blob.RemoteRef) string {
	return ref.Namespace + "/" + ref.Key
}
