// Package assembler turns per-segment speaker labels into speaker turns and
// persists them as a JSON sidecar next to the audio file.
package assembler

import (
	"fmt"
	"strings"

	"diarizer/internal/transcript"
)

// DefaultSpeakerLabel formats the 1-indexed speaker number
const DefaultSpeakerLabel = "Speaker %d"

// LabeledSegment is a segment paired with its cluster label
type LabeledSegment struct {
	transcript.Segment
	Label int
}

// TurnSegment is one segment inside a speaker turn
type TurnSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SpeakerTurn is a maximal run of consecutive segments with the same label
type SpeakerTurn struct {
	SpeakerID string        `json:"speakerId"`
	StartTime float64       `json:"startTime"`
	Segments  []TurnSegment `json:"segments"`
}

// Result is the ordered list of speaker turns
type Result struct {
	Segments []SpeakerTurn `json:"segments"`
}

// SegmentCount returns the number of segments across all turns
func (r *Result) SegmentCount() int {
	n := 0
	for _, turn := range r.Segments {
		n += len(turn.Segments)
	}
	return n
}

// Speakers returns the distinct speaker ids in order of first appearance
func (r *Result) Speakers() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, turn := range r.Segments {
		if !seen[turn.SpeakerID] {
			seen[turn.SpeakerID] = true
			ids = append(ids, turn.SpeakerID)
		}
	}
	return ids
}

// Labeler maps a 0-based cluster label to a speaker id
type Labeler struct {
	pattern string
}

// NewLabeler creates a Labeler from a printf pattern with a single integer
// verb, for example "Speaker %d" or "说话人%d". An empty pattern selects
// DefaultSpeakerLabel.
func NewLabeler(pattern string) (*Labeler, error) {
	if pattern == "" {
		pattern = DefaultSpeakerLabel
	}
	if strings.Count(pattern, "%d") != 1 {
		return nil, fmt.Errorf("speaker label %q must contain exactly one %%d", pattern)
	}
	if probe := fmt.Sprintf(pattern, 1); strings.Contains(probe, "%!") {
		return nil, fmt.Errorf("speaker label %q has unsupported format verbs", pattern)
	}
	return &Labeler{pattern: pattern}, nil
}

// SpeakerID returns the id of label, numbered from 1
func (l *Labeler) SpeakerID(label int) string {
	return fmt.Sprintf(l.pattern, label+1)
}

// Label pairs each segment with its label
func Label(segments []transcript.Segment, labels []int) ([]LabeledSegment, error) {
	if len(segments) != len(labels) {
		return nil, fmt.Errorf("got %d labels for %d segments", len(labels), len(segments))
	}
	out := make([]LabeledSegment, len(segments))
	for i, seg := range segments {
		out[i] = LabeledSegment{Segment: seg, Label: labels[i]}
	}
	return out, nil
}

// Assemble groups segments into speaker turns. A new turn starts whenever the
// label differs from the previous segment's, so a speaker who returns after
// an interruption opens a new turn.
func Assemble(segments []transcript.Segment, labels []int, labeler *Labeler) (*Result, error) {
	labeled, err := Label(segments, labels)
	if err != nil {
		return nil, err
	}
	if labeler == nil {
		labeler = &Labeler{pattern: DefaultSpeakerLabel}
	}

	result := &Result{Segments: []SpeakerTurn{}}
	for i, seg := range labeled {
		if i == 0 || seg.Label != labeled[i-1].Label {
			result.Segments = append(result.Segments, SpeakerTurn{
				SpeakerID: labeler.SpeakerID(seg.Label),
				StartTime: seg.Start,
			})
		}
		turn := &result.Segments[len(result.Segments)-1]
		turn.Segments = append(turn.Segments, TurnSegment{
			Text:  strings.TrimSpace(seg.Text),
			Start: seg.Start,
			End:   seg.End,
		})
	}
	return result, nil
}
