package modeladapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/google/uuid"
)

// AnthropicBackend implements Backend directly against the Anthropic Messages
// API instead of an async submit/poll HTTP endpoint. Generation happens
// synchronously inside Submit; the result is cached under a generated job ID
// so Poll can still report it, letting Adapter.Generate drive both backends
// through the same interface regardless of which one the configuration selects.
type AnthropicBackend struct {
	client anthropic.Client
	model  anthropic.Model

	mu      sync.Mutex
	results map[string]PollResult
}

// NewAnthropicBackend creates a backend for the given model. apiKey empty
// defers to the SDK's own ANTHROPIC_API_KEY environment lookup.
func NewAnthropicBackend(apiKey string, model anthropic.Model) *AnthropicBackend {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &AnthropicBackend{
		client:  anthropic.NewClient(opts...),
		model:   model,
		results: make(map[string]PollResult),
	}
}

// Submit sends the prompt template as a single user message and blocks for
// the response; the returned job ID is purely a handle for the later Poll.
func (b *AnthropicBackend) Submit(ctx context.Context, segmentRef, language, mode, promptTemplate string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nsegment: %s\nlanguage: %s\nmode: %s", promptTemplate, segmentRef, language, mode)

	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})

	jobID := uuid.New().String()

	var result PollResult
	if err != nil {
		result = PollResult{Status: StatusFailed, Error: err.Error()}
	} else {
		var text string
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		result = PollResult{Status: StatusCompleted, CueText: text}
	}

	b.mu.Lock()
	b.results[jobID] = result
	b.mu.Unlock()

	if err != nil {
		return "", classifySubmitError(err)
	}
	return jobID, nil
}

// Poll returns the result cached by Submit. Since Submit blocks for the full
// response, the first Poll always observes a terminal status.
func (b *AnthropicBackend) Poll(ctx context.Context, jobID string) (PollResult, error) {
	if jobID == "" {
		return PollResult{}, ErrJobIDRequired
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	result, ok := b.results[jobID]
	if !ok {
		return PollResult{}, ErrJobIDRequired
	}
	delete(b.results, jobID)
	return result, nil
}

var _ Backend = (*AnthropicBackend)(nil)
