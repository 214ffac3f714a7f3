package transcript

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Segment is one timestamped piece of transcript text as produced by the
// speech-to-text engine. Times are seconds from the start of the audio.
type Segment struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Text  string  `json:"text" yaml:"text"`
}

// Document is the segments file exchanged with the transcription engine
type Document struct {
	Segments []Segment `json:"segments" yaml:"segments"`
}

// Duration returns the segment length in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Validate checks if the Segment has valid values
func (s Segment) Validate() error {
	if math.IsNaN(s.Start) || math.IsInf(s.Start, 0) || math.IsNaN(s.End) || math.IsInf(s.End, 0) {
		return fmt.Errorf("start and end must be finite")
	}

	if s.Start < 0 {
		return fmt.Errorf("start cannot be negative")
	}

	if s.End < s.Start {
		return fmt.Errorf("end must not be before start")
	}

	// The result encoder would replace invalid bytes, so the written text would
	// no longer match the input
	if !utf8.ValidString(s.Text) {
		return fmt.Errorf("text is not valid UTF-8")
	}

	return nil
}
