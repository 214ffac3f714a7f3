package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	derrors "diarizer/internal/errors"
)

// Load reads a segments document. The format follows the file extension:
// .yaml/.yml, .vtt, and JSON for everything else.
func Load(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		e := derrors.Wrap(derrors.KindInvalidInput, "load segments", err)
		e.Path = path
		return nil, e
	}
	defer f.Close()

	var segments []Segment
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		segments, err = ParseYAML(f)
	case ".vtt":
		segments, err = ParseVTT(f)
	default:
		segments, err = ParseJSON(f)
	}
	if err != nil {
		e := derrors.Wrap(derrors.KindInvalidInput, "load segments", err)
		e.Path = path
		return nil, e
	}

	if err := ValidateAll(segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// ValidateAll validates every segment and reports the first offender by index
func ValidateAll(segments []Segment) error {
	for i, s := range segments {
		if err := s.Validate(); err != nil {
			return derrors.ForSegment(derrors.KindInvalidInput, "validate segments", i, s.Start, s.End, err)
		}
	}
	return nil
}

// ParseJSON decodes `{"segments": [...]}`. A bare array of segments is accepted too.
func ParseJSON(r io.Reader) ([]Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var segments []Segment
		if err := json.Unmarshal(trimmed, &segments); err != nil {
			return nil, fmt.Errorf("failed to parse segments JSON: %w", err)
		}
		return segments, nil
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse segments JSON: %w", err)
	}
	return doc.Segments, nil
}

// ParseYAML decodes a YAML document with the same shape as the JSON one
func ParseYAML(r io.Reader) ([]Segment, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse segments YAML: %w", err)
	}
	return doc.Segments, nil
}

// vttCueTimingRegex matches a cue timing line: 00:00:05.579 --> 00:00:06.858 (hours optional)
var vttCueTimingRegex = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}[.,]\d{3})\s+-->\s+((?:\d+:)?\d{2}:\d{2}[.,]\d{3})`)

// ParseVTT reads WebVTT cues as segments. Cue identifiers, the header and NOTE
// blocks are skipped; multi-line cue text is joined with a space.
func ParseVTT(r io.Reader) ([]Segment, error) {
	scanner := bufio.NewScanner(r)
	segments := make([]Segment, 0)

	var current *Segment
	inNote := false

	flush := func() {
		if current != nil {
			segments = append(segments, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		if line == "" {
			flush()
			inNote = false
			continue
		}
		if inNote {
			continue
		}
		if strings.HasPrefix(line, "NOTE") && current == nil {
			inNote = true
			continue
		}

		if matches := vttCueTimingRegex.FindStringSubmatch(line); matches != nil {
			flush()
			start, err := parseVTTTimestamp(matches[1])
			if err != nil {
				return nil, err
			}
			end, err := parseVTTTimestamp(matches[2])
			if err != nil {
				return nil, err
			}
			current = &Segment{Start: start, End: end}
			continue
		}

		// Text only counts inside a cue; identifiers and the header fall through here
		if current != nil {
			if current.Text != "" {
				current.Text += " "
			}
			current.Text += line
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read VTT: %w", err)
	}
	return segments, nil
}

// parseVTTTimestamp parses [HH:]MM:SS.mmm into seconds
func parseVTTTimestamp(ts string) (float64, error) {
	ts = strings.Replace(ts, ",", ".", 1)
	parts := strings.Split(ts, ":")

	var hours, minutes int
	var seconds float64
	var err error
	switch len(parts) {
	case 3:
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid VTT timestamp %q: %w", ts, err)
		}
		parts = parts[1:]
		fallthrough
	case 2:
		if minutes, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid VTT timestamp %q: %w", ts, err)
		}
		if seconds, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, fmt.Errorf("invalid VTT timestamp %q: %w", ts, err)
		}
	default:
		return 0, fmt.Errorf("invalid VTT timestamp %q", ts)
	}

	return float64(hours*3600+minutes*60) + seconds, nil
}
