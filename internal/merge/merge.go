// Package merge implements the timestamp offset and merge algebra (C8):
// shifting per-segment cue sequences into the job's timeline, concatenating
// them in order, and enforcing the merged sequence's non-overlap and
// max-duration invariants. Every function here is pure and deterministic
// given the same inputs.
package merge

import (
	"log/slog"
	"strings"
	"time"

	"github.com/maauso/subtitlegen/internal/cue"
	"github.com/maauso/subtitlegen/internal/job"
)

// Tolerance is the slack allowed past a segment's nominal duration before a
// cue is clipped, per spec §4.7.
const Tolerance = 50 * time.Millisecond

// OverlapSnapThreshold is the largest overlap the merger resolves by
// snapping the later cue's start forward; larger overlaps truncate the
// earlier cue's end instead.
const OverlapSnapThreshold = 200 * time.Millisecond

// Offset shifts every cue in one segment's sequence by the segment's start
// offset, and clips any cue extending past the segment's duration (plus
// Tolerance) back to the segment boundary. A cue that becomes degenerate
// after clipping (end <= start) is dropped.
func Offset(cues []cue.Cue, seg job.Segment) []cue.Cue {
	start := secondsToDuration(seg.Start)
	limit := secondsToDuration(seg.Duration) + Tolerance

	out := make([]cue.Cue, 0, len(cues))
	for _, c := range cues {
		shifted := cue.Cue{
			Start: c.Start + start,
			End:   c.End + start,
			Text:  c.Text,
		}
		localEnd := c.End
		if localEnd > limit {
			shifted.End = start + secondsToDuration(seg.Duration)
		}
		if shifted.End <= shifted.Start {
			continue // degenerate after clipping
		}
		out = append(out, shifted)
	}
	return out
}

// Merge concatenates offset per-segment cue sequences (already in segment
// order), reassigns sequential 1-based indices, resolves overlaps per the
// tie-break policy, and splits cues that exceed maxCueDuration.
func Merge(perSegment [][]cue.Cue, maxCueDuration time.Duration, logger *slog.Logger) []cue.Cue {
	if logger == nil {
		logger = slog.Default()
	}

	var all []cue.Cue
	for _, seq := range perSegment {
		all = append(all, seq...)
	}

	resolved := resolveOverlaps(all, logger)
	split := splitLongCues(resolved, maxCueDuration)

	for i := range split {
		split[i].Index = i + 1
	}
	return split
}

func resolveOverlaps(cues []cue.Cue, logger *slog.Logger) []cue.Cue {
	if len(cues) == 0 {
		return cues
	}
	out := make([]cue.Cue, len(cues))
	copy(out, cues)

	for i := 0; i < len(out)-1; i++ {
		cur := out[i]
		next := out[i+1]
		if next.Start >= cur.End {
			continue
		}
		overlap := cur.End - next.Start
		if overlap <= OverlapSnapThreshold {
			out[i+1].Start = cur.End
		} else {
			out[i].End = next.Start - time.Millisecond
			logger.Warn("merge: truncated cue end to resolve overlap",
				slog.Int("cue_index", i), slog.Duration("overlap", overlap))
		}
	}
	return out
}

func splitLongCues(cues []cue.Cue, maxCueDuration time.Duration) []cue.Cue {
	if maxCueDuration <= 0 {
		return cues
	}
	var out []cue.Cue
	for _, c := range cues {
		if c.Duration() <= maxCueDuration {
			out = append(out, c)
			continue
		}
		out = append(out, splitCue(c, maxCueDuration)...)
	}
	return out
}

// splitCue divides a too-long cue into the minimum number of pieces that
// each respect maxCueDuration. The original text is partitioned across the
// pieces in order, with no re-flow of words or lines, so that concatenating
// every piece's text reconstructs the original character-for-character;
// only the final piece's duration may be shorter than maxCueDuration.
func splitCue(c cue.Cue, maxCueDuration time.Duration) []cue.Cue {
	total := c.Duration()
	n := int(total / maxCueDuration)
	if total%maxCueDuration != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}

	joined := strings.Join(c.Text, "\n")
	textPieces := partitionString(joined, n)

	pieces := make([]cue.Cue, 0, n)
	start := c.Start
	for i := 0; i < n; i++ {
		end := start + maxCueDuration
		if i == n-1 || end > c.End {
			end = c.End
		}
		pieces = append(pieces, cue.Cue{Start: start, End: end, Text: []string{textPieces[i]}})
		start = end
	}
	return pieces
}

// partitionString splits s into n contiguous, roughly equal pieces (by
// rune count) whose concatenation equals s exactly.
func partitionString(s string, n int) []string {
	runes := []rune(s)
	total := len(runes)
	base := total / n
	extra := total % n

	out := make([]string, n)
	pos := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		out[i] = string(runes[pos : pos+size])
		pos += size
	}
	return out
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
