package cue

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError reports a malformed cue block with the line number it starts
// at, so callers can surface a precise diagnostic.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cue: line %d: %s", e.Line, e.Message)
}

var timingPattern = regexp.MustCompile(
	`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// Parse reads a line-oriented cue-list: blocks separated by blank lines,
// each consisting of an optional numeric index line, a timing line, and
// one or more text lines. It tolerates a missing index line, mixed ','/'.'
// separators in timestamps, and trailing blank lines.
func Parse(r io.Reader) ([]Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cues       []Cue
		block      []string
		blockStart int
		lineNo     int
	)

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		c, err := parseBlock(block, blockStart)
		if err != nil {
			return err
		}
		cues = append(cues, c)
		block = nil
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if len(block) == 0 {
			blockStart = lineNo
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cue: read: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return cues, nil
}

func parseBlock(lines []string, startLine int) (Cue, error) {
	idx := 0
	// An optional numeric index line precedes the timing line.
	if idx < len(lines) {
		if _, err := strconv.Atoi(strings.TrimSpace(lines[idx])); err == nil {
			idx++
		}
	}
	if idx >= len(lines) {
		return Cue{}, &ParseError{Line: startLine, Message: "block has no timing line"}
	}

	m := timingPattern.FindStringSubmatch(lines[idx])
	if m == nil {
		return Cue{}, &ParseError{Line: startLine + idx, Message: "malformed timing line: " + lines[idx]}
	}
	start, err := timingToDuration(m[1:5])
	if err != nil {
		return Cue{}, &ParseError{Line: startLine + idx, Message: err.Error()}
	}
	end, err := timingToDuration(m[5:9])
	if err != nil {
		return Cue{}, &ParseError{Line: startLine + idx, Message: err.Error()}
	}
	if start < 0 || end < 0 {
		return Cue{}, &ParseError{Line: startLine + idx, Message: "negative time"}
	}
	if end <= start {
		return Cue{}, &ParseError{Line: startLine + idx, Message: "end <= start"}
	}
	idx++

	text := lines[idx:]
	if len(text) == 0 {
		return Cue{}, &ParseError{Line: startLine, Message: "block has no text"}
	}

	return Cue{Start: start, End: end, Text: append([]string(nil), text...)}, nil
}

func timingToDuration(parts []string) (time.Duration, error) {
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hours: %w", err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minutes: %w", err)
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds: %w", err)
	}
	ms, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0, fmt.Errorf("invalid milliseconds: %w", err)
	}
	total := time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
	return total, nil
}
