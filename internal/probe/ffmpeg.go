package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/maauso/subtitlegen/internal/job"
)

// FFprobeError carries the stderr output from a failed ffprobe invocation.
type FFprobeError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFprobeError) Error() string {
	return fmt.Sprintf("ffprobe error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFprobeError) Unwrap() error { return e.Err }

// FFprobeProber implements Prober using the ffprobe CLI's JSON output mode,
// reading stream and format metadata instead of the scalar duration a
// plain-text parse would give.
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber creates a new FFprobeProber. If ffprobePath is empty it
// defaults to "ffprobe" resolved via PATH.
func NewFFprobeProber(ffprobePath string) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobeProber{ffprobePath: ffprobePath}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	Size      string `json:"size"`
}

// Probe extracts duration, codecs, resolution, frame rate, and audio
// presence from a source file via ffprobe.
func (p *FFprobeProber) Probe(ctx context.Context, path string) (job.Media, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return job.Media{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return job.Media{}, &FFprobeError{Args: args, Stderr: stderr.String(), Err: err}
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return job.Media{}, fmt.Errorf("probe: parse ffprobe output: %w", err)
	}

	m := job.Media{}
	var duration float64
	if _, err := fmt.Sscanf(out.Format.Duration, "%f", &duration); err == nil {
		m.Duration = duration
	}

	if info, err := os.Stat(path); err == nil {
		m.SizeBytes = info.Size()
	} else if out.Format.Size != "" {
		var size int64
		if _, err := fmt.Sscanf(out.Format.Size, "%d", &size); err == nil {
			m.SizeBytes = size
		}
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			m.HasVideo = true
			m.Width = s.Width
			m.Height = s.Height
			m.FrameRate = parseFrameRate(s.RFrameRate)
			if m.Codec == "" {
				m.Codec = s.CodecName
			}
		case "audio":
			m.HasAudio = true
		}
	}

	return m, nil
}

// parseFrameRate converts ffprobe's "30000/1001"-style rational frame rate
// into a float.
func parseFrameRate(s string) float64 {
	var num, den float64
	if n, err := fmt.Sscanf(s, "%f/%f", &num, &den); err == nil && n == 2 && den != 0 {
		return num / den
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err == nil {
		return f
	}
	return 0
}
