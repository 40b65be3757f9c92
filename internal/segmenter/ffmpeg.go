package segmenter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FFmpegExtractor implements Extractor using the ffmpeg CLI, stream-copying
// the requested interval without re-encoding.
type FFmpegExtractor struct {
	ffmpegPath string
}

// NewFFmpegExtractor creates a new FFmpegExtractor. If ffmpegPath is empty
// it defaults to "ffmpeg" resolved via PATH.
func NewFFmpegExtractor(ffmpegPath string) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegExtractor{ffmpegPath: ffmpegPath}
}

// FFmpegError carries the stderr output from a failed ffmpeg invocation.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error { return e.Err }

// Extract stream-copies [start, start+duration) from sourcePath into
// outputPath.
func (e *FFmpegExtractor) Extract(ctx context.Context, sourcePath, outputPath string, start, duration float64) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("segmenter: create output dir: %w", err)
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", sourcePath,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outputPath,
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

var _ Extractor = (*FFmpegExtractor)(nil)
