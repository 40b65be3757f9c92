package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/maauso/subtitlegen/internal/cue"
)

// LangchainScorer is a Scorer backed by any langchaingo llms.Model,
// prompted to return a strict quality/cultural score pair as JSON. It lets
// the quality gate swap judges (OpenAI, Anthropic, a local model) without
// touching Evaluate.
type LangchainScorer struct {
	model llms.Model
}

// NewLangchainScorer wraps model as a Scorer.
func NewLangchainScorer(model llms.Model) *LangchainScorer {
	return &LangchainScorer{model: model}
}

type scorerResponse struct {
	Quality  float64 `json:"quality"`
	Cultural float64 `json:"cultural"`
}

// Score asks the wrapped model to rate the translated cue text against the
// source intent it was given no access to, by rubric alone: fidelity and
// fluency for quality, idiom and register appropriateness for cultural.
func (s *LangchainScorer) Score(ctx context.Context, cues []cue.Cue, sourceLanguage, targetLanguage string) (float64, float64, error) {
	var sb strings.Builder
	for _, c := range cues {
		for _, line := range c.Text {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	prompt := fmt.Sprintf(
		"You are grading a %s-to-%s subtitle translation for quality and cultural fit.\n"+
			"Respond with ONLY a JSON object: {\"quality\": <0..1>, \"cultural\": <0..1>}.\n\n"+
			"Translated text:\n%s",
		sourceLanguage, targetLanguage, sb.String(),
	)

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt)
	if err != nil {
		return 0, 0, fmt.Errorf("quality: scorer call failed: %w", err)
	}

	var resp scorerResponse
	if err := json.Unmarshal([]byte(extractJSON(completion)), &resp); err != nil {
		return 0, 0, fmt.Errorf("quality: parse scorer response: %w", err)
	}
	return resp.Quality, resp.Cultural, nil
}

// extractJSON trims any leading/trailing prose a judge model might add
// around the JSON object despite instructions.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

var _ Scorer = (*LangchainScorer)(nil)
