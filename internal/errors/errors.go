// Package errors defines the error kinds surfaced by the diarization pipeline.
//
// Every failure that aborts a run is reported as an *Error carrying a Kind plus
// whatever context identifies the failing input (segment index and time range,
// requested speaker count, output path). Callers inspect errors with the Is*
// helpers or KindOf rather than matching on message text.
//
// Usage:
//
//	import derrors "diarizer/internal/errors"
//
//	if derrors.IsClusterConfig(err) {
//	    // bad --speakers value
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindAudioDecode       Kind = "audio_decode"
	KindFeatureExtraction Kind = "feature_extraction"
	KindClusterConfig     Kind = "cluster_config"
	KindSerialization     Kind = "serialization"
	KindInvalidInput      Kind = "invalid_input"
)

// NoSegment marks an Error that is not tied to a particular segment.
const NoSegment = -1

// Error is a structured pipeline error.
type Error struct {
	Kind         Kind
	Stage        string
	Message      string
	SegmentIndex int
	Start        float64
	End          float64
	Speakers     int
	Path         string
	Cause        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		b.WriteString(": ")
		b.WriteString(e.Stage)
	}
	if e.SegmentIndex >= 0 {
		fmt.Fprintf(&b, ": segment %d [%.3fs, %.3fs)", e.SegmentIndex, e.Start, e.End)
	}
	if e.Speakers != 0 {
		fmt.Fprintf(&b, ": speakers=%d", e.Speakers)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, ": %s", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an Error of the given kind that is not tied to a segment.
func New(kind Kind, stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, SegmentIndex: NoSegment}
}

// Wrap returns an Error of the given kind wrapping cause.
func Wrap(kind Kind, stage string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, SegmentIndex: NoSegment, Cause: cause}
}

// ForSegment returns an Error tied to segment index over [start, end).
func ForSegment(kind Kind, stage string, index int, start, end float64, cause error) *Error {
	return &Error{
		Kind:         kind,
		Stage:        stage,
		SegmentIndex: index,
		Start:        start,
		End:          end,
		Cause:        cause,
	}
}

// AtSegment attaches segment context to err. An existing *Error keeps its kind
// and gains the segment fields; anything else is wrapped with fallback.
func AtSegment(err error, fallback Kind, stage string, index int, start, end float64) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		cp := *pe
		cp.SegmentIndex = index
		cp.Start = start
		cp.End = end
		if cp.Stage == "" {
			cp.Stage = stage
		}
		return &cp
	}
	return ForSegment(fallback, stage, index, start, end, err)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsAudioDecode reports whether err is an audio decode failure.
func IsAudioDecode(err error) bool {
	return KindOf(err) == KindAudioDecode
}

// IsFeatureExtraction reports whether err is a feature extraction failure.
func IsFeatureExtraction(err error) bool {
	return KindOf(err) == KindFeatureExtraction
}

// IsClusterConfig reports whether err is an invalid clustering request.
func IsClusterConfig(err error) bool {
	return KindOf(err) == KindClusterConfig
}

// IsSerialization reports whether err is a result write failure.
func IsSerialization(err error) bool {
	return KindOf(err) == KindSerialization
}

// IsInvalidInput reports whether err is a malformed input document.
func IsInvalidInput(err error) bool {
	return KindOf(err) == KindInvalidInput
}
