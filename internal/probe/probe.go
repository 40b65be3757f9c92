// Package probe implements the Media Probe & Validator (C3): extracting
// duration, codecs, resolution, frame rate, and audio presence from a
// source file, and enforcing the input-admission policy against that
// metadata.
package probe

import (
	"context"

	"github.com/maauso/subtitlegen/internal/job"
)

// Prober extracts media metadata from a source file. Implementations
// shell out to an external tool (ffprobe); the interface exists so the
// scheduler and validator can be tested against a fake.
type Prober interface {
	Probe(ctx context.Context, path string) (job.Media, error)
}

// Limits is the configurable admission policy (spec §4.2 / §6).
type Limits struct {
	MaxDurationSeconds float64
	MaxSizeBytes       int64
	AdmittedCodecs     []string // empty means "permissive default": admit any codec
}

// Admit evaluates probed metadata against Limits and returns nil if the
// source is admitted, or an error describing the precise rejection reason.
func Admit(m job.Media, lim Limits) error {
	if !m.HasAudio {
		return AdmissionError("source has no audio stream; generation has no fallback")
	}
	if !m.HasVideo {
		return AdmissionError("source has no video stream")
	}
	if m.Duration <= 0 {
		return AdmissionError("source has zero or negative duration")
	}
	if lim.MaxDurationSeconds > 0 && m.Duration > lim.MaxDurationSeconds {
		return AdmissionError("source duration exceeds the configured ceiling")
	}
	if lim.MaxSizeBytes > 0 && m.SizeBytes > lim.MaxSizeBytes {
		return AdmissionError("source size exceeds the configured ceiling")
	}
	if len(lim.AdmittedCodecs) > 0 && !contains(lim.AdmittedCodecs, m.Codec) {
		return AdmissionError("source codec is not in the admitted set: " + m.Codec)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// AdmissionError carries the precise rejection reason the scheduler folds
// into an errorx.InvalidInput fault.
type AdmissionError string

func (e AdmissionError) Error() string { return string(e) }

// DefaultLimits mirrors spec §4.2's defaults: 12h duration ceiling, 10GiB
// size ceiling, a permissive (empty) codec admit-set.
func DefaultLimits() Limits {
	return Limits{
		MaxDurationSeconds: 12 * 60 * 60,
		MaxSizeBytes:       10 * 1024 * 1024 * 1024,
	}
}
