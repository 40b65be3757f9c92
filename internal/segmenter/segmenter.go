// Package segmenter implements the Segmenter (C4): splitting a source file
// into fixed-interval, independently decodable sub-clips, with resumability
// across crashes and adaptive halving when a produced segment would exceed
// the configured size ceiling.
package segmenter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/maauso/subtitlegen/internal/job"
)

// Extractor cuts a single sub-clip out of a source file. Implementations
// shell out to an external tool (ffmpeg); the interface exists so Segmenter
// can be tested against a fake.
type Extractor interface {
	Extract(ctx context.Context, sourcePath, outputPath string, start, duration float64) error
}

// DefaultMaxSegmentBytes is the size ceiling a produced segment must not
// exceed before the segmenter halves the affected range and recurses.
const DefaultMaxSegmentBytes = 150 * 1024 * 1024

// maxRecursionDepth bounds the halving recursion so a pathological bitrate
// cannot spin the segmenter forever; a range that still exceeds the limit
// after this many halvings is accepted as-is.
const maxRecursionDepth = 6

// minSplitDuration is the smallest duration a halving pass will still
// attempt to split further.
const minSplitDuration = 1.0 // seconds

// Segmenter drives fixed-interval segmentation of a source file.
type Segmenter struct {
	extractor       Extractor
	maxSegmentBytes int64
}

// New creates a Segmenter. A maxSegmentBytes <= 0 selects DefaultMaxSegmentBytes.
func New(extractor Extractor, maxSegmentBytes int64) *Segmenter {
	if maxSegmentBytes <= 0 {
		maxSegmentBytes = DefaultMaxSegmentBytes
	}
	return &Segmenter{extractor: extractor, maxSegmentBytes: maxSegmentBytes}
}

type interval struct {
	start    float64
	duration float64
}

// plan divides [0, totalDuration) into ceil(totalDuration/chunkDuration)
// contiguous intervals, the last absorbing any remainder so the final
// segment's end matches totalDuration exactly.
func plan(totalDuration, chunkDuration float64) []interval {
	if chunkDuration <= 0 {
		chunkDuration = totalDuration
	}
	n := int(math.Ceil(totalDuration / chunkDuration))
	if n < 1 {
		n = 1
	}
	out := make([]interval, 0, n)
	start := 0.0
	for i := 0; i < n; i++ {
		end := start + chunkDuration
		if i == n-1 || end > totalDuration {
			end = totalDuration
		}
		out = append(out, interval{start: start, duration: end - start})
		start = end
	}
	return out
}

// Split produces Segment records covering [0, totalDuration) at chunkDuration
// intervals, reusing any segment in existing whose file still matches its
// recorded checksum, and recursively halving a range whose extracted file
// exceeds maxSegmentBytes.
func (s *Segmenter) Split(ctx context.Context, sourcePath string, totalDuration, chunkDuration float64, scratchDir string, existing []job.Segment) ([]job.Segment, error) {
	if err := os.MkdirAll(scratchDir, 0o750); err != nil {
		return nil, fmt.Errorf("segmenter: create scratch dir: %w", err)
	}

	byStart := make(map[float64]job.Segment, len(existing))
	for _, seg := range existing {
		byStart[seg.Start] = seg
	}

	var out []job.Segment
	for _, iv := range plan(totalDuration, chunkDuration) {
		segs, err := s.materialize(ctx, sourcePath, scratchDir, iv, byStart, 0)
		if err != nil {
			for i := range out {
				out[i].Index = i
			}
			return out, err
		}
		out = append(out, segs...)
	}
	for i := range out {
		out[i].Index = i
	}
	return out, nil
}

func (s *Segmenter) materialize(ctx context.Context, sourcePath, scratchDir string, iv interval, byStart map[float64]job.Segment, depth int) ([]job.Segment, error) {
	outputPath := filepath.Join(scratchDir, fmt.Sprintf("segment_%012d.mp4", int64(iv.start*1000)))

	if rec, ok := byStart[iv.start]; ok && rec.Duration == iv.duration {
		if checksum, size, err := checksumFile(rec.LocalPath); err == nil && checksum == rec.Checksum {
			reused := rec
			reused.LocalPath = rec.LocalPath
			reused.SizeBytes = size
			return []job.Segment{reused}, nil
		}
		// Stale or partial: remove and recreate below.
		_ = os.Remove(rec.LocalPath)
	}

	if err := s.extractor.Extract(ctx, sourcePath, outputPath, iv.start, iv.duration); err != nil {
		return nil, fmt.Errorf("segmenter: extract [%.3f,+%.3f): %w", iv.start, iv.duration, err)
	}

	checksum, size, err := checksumFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("segmenter: checksum extracted segment: %w", err)
	}

	if size > s.maxSegmentBytes && depth < maxRecursionDepth && iv.duration > minSplitDuration*2 {
		_ = os.Remove(outputPath)
		half := iv.duration / 2
		left := interval{start: iv.start, duration: half}
		right := interval{start: iv.start + half, duration: iv.duration - half}

		leftSegs, err := s.materialize(ctx, sourcePath, scratchDir, left, byStart, depth+1)
		if err != nil {
			return nil, err
		}
		rightSegs, err := s.materialize(ctx, sourcePath, scratchDir, right, byStart, depth+1)
		if err != nil {
			return nil, err
		}
		return append(leftSegs, rightSegs...), nil
	}

	return []job.Segment{{
		Start:     iv.start,
		Duration:  iv.duration,
		LocalPath: outputPath,
		Checksum:  checksum,
		SizeBytes: size,
	}}, nil
}

func checksumFile(path string) (checksum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
