// Package quality implements the Quality Gate (C9): it scores a merged cue
// sequence against a fixed structural rubric, optionally augmented by an
// external linguistic/cultural scorer, and returns a verdict the scheduler
// uses to decide whether to retry, fail, or accept a unit of work.
package quality

import (
	"context"
	"time"

	"github.com/maauso/subtitlegen/internal/cue"
)

// Verdict is the gate's final decision for one evaluation.
type Verdict string

const (
	VerdictAccept Verdict = "accept"
	VerdictRetry  Verdict = "retry"
	VerdictFail   Verdict = "fail"
)

// Config carries the gate's configurable thresholds; see Config fields for
// spec defaults.
type Config struct {
	MinCoverage          float64 // fraction of media duration cues must cover
	MaxDensity           float64 // chars/sec, mean across cues
	MaxCueDuration       time.Duration
	MinTranslationScore  float64 // [0,1], only checked when source != target language
	MinCulturalScore     float64 // [0,1], only checked when source != target language
	MaxAttempts          int
}

// DefaultConfig returns the spec's default thresholds.
func DefaultConfig() Config {
	return Config{
		MinCoverage:         0.6,
		MaxDensity:          25,
		MaxCueDuration:      10 * time.Second,
		MinTranslationScore: 0.70,
		MinCulturalScore:    0.80,
		MaxAttempts:         3,
	}
}

// Metrics are the structural measurements computed over a cue sequence.
type Metrics struct {
	CueCount         int
	EmptyCues        int
	OverlapCount     int
	MeanDuration     time.Duration
	MaxDuration      time.Duration
	MeanDensityCPS   float64
	CoverageFraction float64
}

// Scorer evaluates linguistic quality and cultural accuracy of a cue
// sequence translated from sourceLanguage to targetLanguage. Implementations
// are expected to call out to an external model; Evaluate only invokes one
// when the languages differ.
type Scorer interface {
	Score(ctx context.Context, cues []cue.Cue, sourceLanguage, targetLanguage string) (quality, cultural float64, err error)
}

// Result is the full outcome of one Evaluate call.
type Result struct {
	Verdict          Verdict
	Metrics          Metrics
	LinguisticScore  float64 // 0 when not computed
	CulturalScore    float64 // 0 when not computed
	ScoredLinguistic bool
	Structural       bool // true when the failure mode is structural (never retried)
	Reasons          []string
}

// Evaluate scores cues against cfg's rubric. mediaDuration is the duration of
// the source segment or job the cues must cover. attempt is the 1-based
// attempt number already spent on this unit of work; scorer may be nil when
// sourceLanguage == targetLanguage (no linguistic check applies).
func Evaluate(ctx context.Context, cues []cue.Cue, mediaDuration time.Duration, sourceLanguage, targetLanguage string, attempt int, cfg Config, scorer Scorer) (Result, error) {
	metrics := computeMetrics(cues, mediaDuration)

	var reasons []string
	structural := false

	if metrics.OverlapCount > 0 {
		reasons = append(reasons, "overlapping cues after merge")
		structural = true
	}
	if metrics.EmptyCues > 0 {
		reasons = append(reasons, "empty cue text")
		structural = true
	}
	if metrics.CoverageFraction < cfg.MinCoverage {
		reasons = append(reasons, "coverage below minimum")
	}
	if metrics.MeanDensityCPS > cfg.MaxDensity {
		reasons = append(reasons, "density above maximum")
	}

	result := Result{Metrics: metrics, Structural: structural}

	needsLinguistic := sourceLanguage != targetLanguage && sourceLanguage != "" && targetLanguage != ""
	if needsLinguistic && scorer != nil && !structural {
		linguistic, cultural, err := scorer.Score(ctx, cues, sourceLanguage, targetLanguage)
		if err != nil {
			return Result{}, err
		}
		result.LinguisticScore = linguistic
		result.CulturalScore = cultural
		result.ScoredLinguistic = true
		if linguistic < cfg.MinTranslationScore {
			reasons = append(reasons, "translation quality below minimum")
		}
		if cultural < cfg.MinCulturalScore {
			reasons = append(reasons, "cultural accuracy below minimum")
		}
	}

	result.Reasons = reasons

	switch {
	case len(reasons) == 0:
		result.Verdict = VerdictAccept
	case structural:
		result.Verdict = VerdictFail
	case attempt < cfg.MaxAttempts:
		result.Verdict = VerdictRetry
	default:
		result.Verdict = VerdictFail
	}

	return result, nil
}

func computeMetrics(cues []cue.Cue, mediaDuration time.Duration) Metrics {
	m := Metrics{CueCount: len(cues)}
	if len(cues) == 0 {
		return m
	}

	var totalDuration time.Duration
	var totalChars int
	var totalDensitySpan time.Duration

	for i, c := range cues {
		d := c.Duration()
		totalDuration += d
		if d > m.MaxDuration {
			m.MaxDuration = d
		}
		if len(c.Text) == 0 || allBlank(c.Text) {
			m.EmptyCues++
		}
		totalChars += c.CharCount()
		if d > 0 {
			totalDensitySpan += d
		}

		if i > 0 && c.Start < cues[i-1].End {
			m.OverlapCount++
		}
	}

	m.MeanDuration = totalDuration / time.Duration(len(cues))

	if totalDensitySpan > 0 {
		m.MeanDensityCPS = float64(totalChars) / totalDensitySpan.Seconds()
	}

	if mediaDuration > 0 {
		covered := coveredDuration(cues)
		m.CoverageFraction = float64(covered) / float64(mediaDuration)
		if m.CoverageFraction > 1 {
			m.CoverageFraction = 1
		}
	}

	return m
}

// coveredDuration sums the union of cue intervals, assuming cues are sorted
// by Start (true after merge). Overlapping spans are not double-counted.
func coveredDuration(cues []cue.Cue) time.Duration {
	var total time.Duration
	var spanEnd time.Duration
	for i, c := range cues {
		if i == 0 || c.Start >= spanEnd {
			total += c.Duration()
			spanEnd = c.End
			continue
		}
		if c.End > spanEnd {
			total += c.End - spanEnd
			spanEnd = c.End
		}
	}
	return total
}

func allBlank(lines []string) bool {
	for _, l := range lines {
		for _, r := range l {
			if r != ' ' && r != '\t' {
				return false
			}
		}
	}
	return true
}
