package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	derrors "diarizer/internal/errors"
)

// DefaultSampleRate is the rate every file is resampled to before analysis
const DefaultSampleRate = 16000

// Decoder turns an audio file into a mono PCM signal
type Decoder interface {
	Decode(ctx context.Context, path string) (*Signal, error)
}

// FFmpegDecoder decodes any container ffmpeg understands into 16-bit mono PCM
type FFmpegDecoder struct {
	logger     *zap.Logger
	ffmpegPath string
	sampleRate int
}

// NewFFmpegDecoder creates a new FFmpegDecoder instance
func NewFFmpegDecoder(logger *zap.Logger, ffmpegPath string, sampleRate int) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &FFmpegDecoder{
		logger:     logger,
		ffmpegPath: ffmpegPath,
		sampleRate: sampleRate,
	}
}

// Decode runs ffmpeg over path and returns the whole file as a read-only Signal
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Signal, error) {
	if !ValidateAudioFormat(path) {
		e := derrors.New(derrors.KindAudioDecode, "decode", "unsupported audio format")
		e.Path = path
		return nil, e
	}
	if _, err := os.Stat(path); err != nil {
		e := derrors.Wrap(derrors.KindAudioDecode, "decode", err)
		e.Path = path
		return nil, e
	}

	d.logger.Info("decoding audio with ffmpeg",
		zap.String("path", path),
		zap.Int("sample_rate", d.sampleRate))

	// Convert to 16-bit little-endian mono PCM at the analysis rate
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-i", path,
		"-ar", strconv.Itoa(d.sampleRate),
		"-ac", "1",
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, d.decodeError(path, fmt.Errorf("failed to create stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, d.decodeError(path, fmt.Errorf("failed to create stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return nil, d.decodeError(path, fmt.Errorf("failed to start ffmpeg: %w", err))
	}

	d.logger.Debug("ffmpeg process started", zap.Int("pid", cmd.Process.Pid))

	var stderrTail bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.handleStderr(stderr, &stderrTail)
	}()

	pcm, readErr := io.ReadAll(stdout)
	wg.Wait()
	waitErr := cmd.Wait()

	if readErr != nil {
		return nil, d.decodeError(path, fmt.Errorf("failed to read decoded audio: %w", readErr))
	}
	if waitErr != nil {
		msg := strings.TrimSpace(stderrTail.String())
		if msg != "" {
			return nil, d.decodeError(path, fmt.Errorf("ffmpeg process error: %w: %s", waitErr, msg))
		}
		return nil, d.decodeError(path, fmt.Errorf("ffmpeg process error: %w", waitErr))
	}

	signal := FromPCM16(pcm, d.sampleRate)
	if len(signal.Samples) == 0 {
		return nil, d.decodeError(path, fmt.Errorf("no audio samples decoded"))
	}

	d.logger.Info("audio decoded",
		zap.String("path", path),
		zap.Int("samples", len(signal.Samples)),
		zap.Float64("duration_sec", signal.Duration()))

	return signal, nil
}

func (d *FFmpegDecoder) decodeError(path string, err error) error {
	d.logger.Error("audio decode failed", zap.String("path", path), zap.Error(err))
	e := derrors.Wrap(derrors.KindAudioDecode, "decode", err)
	e.Path = path
	return e
}

// maxStderrTail bounds how much ffmpeg diagnostic output is kept for error messages
const maxStderrTail = 4096

// handleStderr logs ffmpeg stderr output and keeps its tail for error reporting
func (d *FFmpegDecoder) handleStderr(stderr io.Reader, tail *bytes.Buffer) {
	buf := make([]byte, 1024)
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			output := string(buf[:n])
			if containsFFmpegError(output) {
				d.logger.Warn("ffmpeg stderr", zap.String("output", output))
			} else {
				d.logger.Debug("ffmpeg stderr", zap.String("output", output))
			}
			tail.Write(buf[:n])
			if tail.Len() > maxStderrTail {
				keep := tail.Bytes()[tail.Len()-maxStderrTail:]
				trimmed := append([]byte(nil), keep...)
				tail.Reset()
				tail.Write(trimmed)
			}
		}
		if err != nil {
			if err != io.EOF {
				d.logger.Debug("stderr reading completed", zap.Error(err))
			}
			return
		}
	}
}

// containsFFmpegError checks if stderr output contains actual errors vs info
func containsFFmpegError(output string) bool {
	errorIndicators := []string{
		"Error opening",
		"Invalid data",
		"No such file",
		"Permission denied",
		"could not find codec",
	}

	for _, indicator := range errorIndicators {
		if strings.Contains(output, indicator) {
			return true
		}
	}
	return false
}

// FromPCM16 converts 16-bit little-endian mono PCM into a Signal scaled to [-1, 1).
// A trailing odd byte is ignored.
func FromPCM16(pcm []byte, sampleRate int) *Signal {
	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float64(v) / 32768.0
	}
	return &Signal{Samples: samples, SampleRate: sampleRate}
}

// ValidateAudioFormat checks if the file extension is a supported audio container
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	supportedFormats := []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma", ".mp4"}

	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
