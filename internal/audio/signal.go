package audio

import (
	"fmt"
	"math"

	derrors "diarizer/internal/errors"
)

// Signal is a decoded mono waveform. It is shared read-only between concurrent
// feature extraction tasks and must not be modified after decoding.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds
func (s *Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Window returns the samples covering [start, end) seconds. The returned slice
// aliases the signal. An end past the signal is clamped to its length; a start
// at or past the duration is an audio decode error.
func (s *Signal) Window(start, end float64) ([]float64, error) {
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return nil, derrors.New(derrors.KindAudioDecode, "window", "non-finite time range")
	}
	if start < 0 {
		return nil, derrors.New(derrors.KindAudioDecode, "window", fmt.Sprintf("negative start %.3fs", start))
	}
	if end < start {
		return nil, derrors.New(derrors.KindAudioDecode, "window",
			fmt.Sprintf("end %.3fs before start %.3fs", end, start))
	}

	if start >= s.Duration() {
		return nil, derrors.New(derrors.KindAudioDecode, "window",
			fmt.Sprintf("start %.3fs beyond audio duration %.3fs", start, s.Duration()))
	}

	// A start in the final half sample rounds to the end and yields an empty window
	from := min(int(math.Round(start*float64(s.SampleRate))), len(s.Samples))
	to := min(int(math.Round(end*float64(s.SampleRate))), len(s.Samples))
	return s.Samples[from:to], nil
}
