// Package errorx defines the fault taxonomy shared by every pipeline
// component and the fixed policy table the scheduler consults to decide
// retry, pause, fail, or abandon.
package errorx

import (
	"fmt"
	"time"
)

// Kind classifies a fault into one of a fixed set of buckets. The scheduler
// is the only component that decides terminal fate; every other component
// just reports a Kind.
type Kind string

const (
	InvalidInput          Kind = "InvalidInput"
	AuthFault             Kind = "AuthFault"
	TransientIO           Kind = "TransientIO"
	QuotaExceeded         Kind = "QuotaExceeded"
	ModelOutputInvalid    Kind = "ModelOutputInvalid"
	QualityBelowThreshold Kind = "QualityBelowThreshold"
	StructuralInvariant   Kind = "StructuralInvariant"
	DiskExhausted         Kind = "DiskExhausted"
	Cancelled             Kind = "Cancelled"
)

// Disposition is the scheduler's decision for a fault of a given Kind.
type Disposition string

const (
	DispositionFail       Disposition = "fail"
	DispositionRetry      Disposition = "retry"
	DispositionPause      Disposition = "pause"
	DispositionAbandon    Disposition = "abandon"
	DispositionInternal   Disposition = "internal_retry" // retried inside the component, no attempt consumed
)

// Policy is the fixed outcome for one Kind: whether the scheduler consumes
// an attempt, and what it does next.
type Policy struct {
	Disposition   Disposition
	ConsumeAttempt bool
}

// policyTable is the single source of truth for kind -> policy. Nothing
// else in the codebase should branch on Kind to decide disposition.
var policyTable = map[Kind]Policy{
	InvalidInput:          {DispositionFail, false},
	AuthFault:             {DispositionFail, false},
	TransientIO:           {DispositionInternal, false},
	QuotaExceeded:         {DispositionPause, false},
	ModelOutputInvalid:    {DispositionRetry, true},
	QualityBelowThreshold: {DispositionRetry, true},
	StructuralInvariant:   {DispositionFail, false},
	DiskExhausted:         {DispositionFail, false},
	Cancelled:             {DispositionAbandon, false},
}

// PolicyFor returns the fixed policy for a Kind. Unknown kinds are treated
// as fatal, never as a silent retry.
func PolicyFor(k Kind) Policy {
	if p, ok := policyTable[k]; ok {
		return p
	}
	return Policy{DispositionFail, false}
}

// Record is the durable error record attached to JobState.last_error. Only
// the most recent record is retained, per spec: previous errors are not
// kept around to bound record size.
type Record struct {
	Kind      Kind              `yaml:"kind" json:"kind"`
	Message   string            `yaml:"message" json:"message"`
	Component string            `yaml:"component" json:"component"`
	At        time.Time         `yaml:"at" json:"at"`
	Context   map[string]string `yaml:"context,omitempty" json:"context,omitempty"`
}

func (r Record) Error() string {
	return fmt.Sprintf("%s[%s]: %s", r.Component, r.Kind, r.Message)
}

// Fault is a typed error carrying a Kind, usable with errors.As.
type Fault struct {
	Record
	Wrapped error
}

func (f *Fault) Error() string {
	if f.Wrapped != nil {
		return fmt.Sprintf("%s: %v", f.Record.Error(), f.Wrapped)
	}
	return f.Record.Error()
}

func (f *Fault) Unwrap() error { return f.Wrapped }

// New constructs a Fault of the given kind with no context, wrapping err
// (which may be nil).
func New(kind Kind, component, message string, err error) *Fault {
	return &Fault{
		Record: Record{
			Kind:      kind,
			Message:   message,
			Component: component,
			At:        time.Now(),
		},
		Wrapped: err,
	}
}

// WithContext returns a copy of f with k=v added to its context map.
func (f *Fault) WithContext(k, v string) *Fault {
	cp := *f
	ctx := make(map[string]string, len(f.Context)+1)
	for ck, cv := range f.Context {
		ctx[ck] = cv
	}
	ctx[k] = v
	cp.Context = ctx
	return &cp
}
