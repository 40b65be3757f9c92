package cue

import (
	"fmt"
	"io"
	"strings"
	"time"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EmitSRT renders cues into the compact form: UTF-8 with a leading
// byte-order mark, sequential 1-based block numbers, ',' millisecond
// separator, one blank line between blocks, trailing newline.
func EmitSRT(w io.Writer, cues []Cue) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("cue: write BOM: %w", err)
	}
	for i, c := range cues {
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n", i+1,
			formatTiming(c.Start, ','), formatTiming(c.End, ','), strings.Join(c.Text, "\n")); err != nil {
			return fmt.Errorf("cue: write srt block %d: %w", i+1, err)
		}
		if i < len(cues)-1 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// EmitVTT renders cues into the cue-based form: UTF-8 without a byte-order
// mark, leading "WEBVTT" line, one blank line, blocks without numbering,
// '.' timing separator, trailing newline.
func EmitVTT(w io.Writer, cues []Cue) error {
	if _, err := io.WriteString(w, "WEBVTT\n\n"); err != nil {
		return fmt.Errorf("cue: write header: %w", err)
	}
	for i, c := range cues {
		if _, err := fmt.Fprintf(w, "%s --> %s\n%s\n", formatTiming(c.Start, '.'), formatTiming(c.End, '.'), strings.Join(c.Text, "\n")); err != nil {
			return fmt.Errorf("cue: write vtt block %d: %w", i+1, err)
		}
		if i < len(cues)-1 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func formatTiming(d time.Duration, sep rune) string {
	total := d.Milliseconds()
	if total < 0 {
		total = 0
	}
	ms := total % 1000
	total /= 1000
	s := total % 60
	total /= 60
	m := total % 60
	total /= 60
	h := total
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}
