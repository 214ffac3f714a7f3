package audio

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	derrors "diarizer/internal/errors"
)

// writeFakeFFmpeg writes a shell script standing in for ffmpeg and returns its path
func writeFakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

// writeAudioFile creates a placeholder input file with a supported extension
func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	return path
}

func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func TestFFmpegDecoder_NewFFmpegDecoder(t *testing.T) {
	logger := zaptest.NewLogger(t)

	decoder := NewFFmpegDecoder(logger, "", 0)

	assert.NotNil(t, decoder)
	assert.Equal(t, "ffmpeg", decoder.ffmpegPath)
	assert.Equal(t, DefaultSampleRate, decoder.sampleRate)
	assert.Equal(t, logger, decoder.logger)
}

func TestFFmpegDecoder_Decode(t *testing.T) {
	t.Run("should convert ffmpeg output into samples", func(t *testing.T) {
		logger := zaptest.NewLogger(t)
		pcmPath := filepath.Join(t.TempDir(), "out.pcm")
		require.NoError(t, os.WriteFile(pcmPath, pcm16(0, 16384, -16384, -32768), 0644))
		t.Setenv("FAKE_PCM", pcmPath)

		decoder := NewFFmpegDecoder(logger, writeFakeFFmpeg(t, `cat "$FAKE_PCM"`), 16000)

		signal, err := decoder.Decode(context.Background(), writeAudioFile(t))

		require.NoError(t, err)
		assert.Equal(t, 16000, signal.SampleRate)
		assert.Equal(t, []float64{0, 0.5, -0.5, -1}, signal.Samples)
	})

	t.Run("should report ffmpeg failures as audio decode errors", func(t *testing.T) {
		logger := zaptest.NewLogger(t)
		script := writeFakeFFmpeg(t, `echo "Invalid data found when processing input" >&2; exit 1`)
		decoder := NewFFmpegDecoder(logger, script, 16000)
		audioPath := writeAudioFile(t)

		signal, err := decoder.Decode(context.Background(), audioPath)

		assert.Nil(t, signal)
		require.Error(t, err)
		assert.True(t, derrors.IsAudioDecode(err))
		assert.Contains(t, err.Error(), "Invalid data found")
		assert.Contains(t, err.Error(), audioPath)
	})

	t.Run("should fail when ffmpeg produces no samples", func(t *testing.T) {
		decoder := NewFFmpegDecoder(zaptest.NewLogger(t), writeFakeFFmpeg(t, "exit 0"), 16000)

		_, err := decoder.Decode(context.Background(), writeAudioFile(t))

		require.Error(t, err)
		assert.True(t, derrors.IsAudioDecode(err))
		assert.Contains(t, err.Error(), "no audio samples")
	})

	t.Run("should fail when the ffmpeg binary is missing", func(t *testing.T) {
		decoder := NewFFmpegDecoder(zaptest.NewLogger(t), "/invalid/ffmpeg/path", 16000)

		_, err := decoder.Decode(context.Background(), writeAudioFile(t))

		require.Error(t, err)
		assert.True(t, derrors.IsAudioDecode(err))
		assert.Contains(t, err.Error(), "failed to start ffmpeg")
	})

	t.Run("should reject missing files before running ffmpeg", func(t *testing.T) {
		decoder := NewFFmpegDecoder(zaptest.NewLogger(t), "/invalid/ffmpeg/path", 16000)

		_, err := decoder.Decode(context.Background(), filepath.Join(t.TempDir(), "absent.mp3"))

		require.Error(t, err)
		assert.True(t, derrors.IsAudioDecode(err))
		assert.NotContains(t, err.Error(), "failed to start ffmpeg")
	})

	t.Run("should reject unsupported extensions", func(t *testing.T) {
		decoder := NewFFmpegDecoder(zaptest.NewLogger(t), "ffmpeg", 16000)

		_, err := decoder.Decode(context.Background(), "notes.txt")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported audio format")
	})
}

func TestFromPCM16_IgnoresTrailingByte(t *testing.T) {
	signal := FromPCM16(append(pcm16(100), 0x7f), 8000)

	assert.Len(t, signal.Samples, 1)
	assert.Equal(t, 8000, signal.SampleRate)
}

func TestValidateAudioFormat(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"talk.mp3", true},
		{"TALK.WAV", true},
		{"a/b/c.m4a", true},
		{"clip.flac", true},
		{"video.mp4", true},
		{"segments.json", false},
		{"noext", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateAudioFormat(tt.name))
		})
	}
}

func TestContainsFFmpegError(t *testing.T) {
	assert.True(t, containsFFmpegError("x.mp3: No such file or directory"))
	assert.True(t, containsFFmpegError("Invalid data found when processing input"))
	assert.False(t, containsFFmpegError("Stream #0:0: Audio: mp3, 44100 Hz"))
}
