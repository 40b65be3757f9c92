// Package modeladapter implements the Model Adapter (C6): issuing one
// generation request per (segment, language, mode), fingerprinted and
// memoized within a job, with quota faults surfaced distinctly from
// ordinary transient failures.
package modeladapter

// Status is the lifecycle state of a submitted generation job, as reported
// by an asynchronous HTTP backend.
type Status string

const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusRunning    Status = "RUNNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// IsTerminal reports whether s will never change on a subsequent poll.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// submitRequest is the wire shape of an HTTPBackend submit call.
type submitRequest struct {
	Input submitInput `json:"input"`
}

type submitInput struct {
	SegmentRef     string `json:"segment_ref"`
	Language       string `json:"language"`
	Mode           string `json:"mode"`
	PromptTemplate string `json:"prompt_template"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type statusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output statusOutput `json:"output,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type statusOutput struct {
	CueText string `json:"cue_text,omitempty"`
}

// PollResult is the outcome of one Poll call against a submitted job.
type PollResult struct {
	Status  Status
	CueText string
	Error   string
}
