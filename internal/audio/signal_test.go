package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "diarizer/internal/errors"
)

func rampSignal(n, rate int) *Signal {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(i)
	}
	return &Signal{Samples: samples, SampleRate: rate}
}

func TestSignal_Duration(t *testing.T) {
	assert.Equal(t, 2.0, rampSignal(200, 100).Duration())
	assert.Equal(t, 0.0, (&Signal{}).Duration())
}

func TestSignal_Window(t *testing.T) {
	signal := rampSignal(100, 10) // 10 seconds

	t.Run("should return the half-open sample range", func(t *testing.T) {
		window, err := signal.Window(1.0, 2.0)

		require.NoError(t, err)
		require.Len(t, window, 10)
		assert.Equal(t, 10.0, window[0])
		assert.Equal(t, 19.0, window[9])
	})

	t.Run("should clamp an end past the audio", func(t *testing.T) {
		window, err := signal.Window(9.5, 12.0)

		require.NoError(t, err)
		assert.Len(t, window, 5)
	})

	t.Run("should return an empty window for zero duration", func(t *testing.T) {
		window, err := signal.Window(3.0, 3.0)

		require.NoError(t, err)
		assert.Empty(t, window)
	})

	t.Run("should return an empty window for a start inside the last half sample", func(t *testing.T) {
		window, err := signal.Window(9.96, 10.0)

		require.NoError(t, err)
		assert.Empty(t, window)
	})

	errorCases := []struct {
		name       string
		start, end float64
		message    string
	}{
		{"start beyond audio", 10.5, 11.0, "beyond audio duration"},
		{"start at the end of audio", 10.0, 10.0, "beyond audio duration"},
		{"negative start", -1, 1, "negative start"},
		{"end before start", 2, 1, "before start"},
		{"nan time", math.NaN(), 1, "non-finite"},
	}
	for _, tc := range errorCases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			_, err := signal.Window(tc.start, tc.end)

			require.Error(t, err)
			assert.True(t, derrors.IsAudioDecode(err))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}
