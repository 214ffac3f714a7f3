package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Configuration provides type-safe access to application settings
type Configuration struct {
	viper *viper.Viper
}

// setDefaults registers every known key so file and env sources only need to override
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.sample_rate", 16000)

	v.SetDefault("features.n_fft", 2048)
	v.SetDefault("features.hop_length", 512)
	v.SetDefault("features.n_mels", 128)
	v.SetDefault("features.pitch_fmin", 150.0)
	v.SetDefault("features.pitch_fmax", 4000.0)
	v.SetDefault("features.pitch_threshold", 0.1)

	v.SetDefault("clustering.default_speakers", 2)

	v.SetDefault("similarity.weights.pitch", 0.20)
	v.SetDefault("similarity.weights.spectral_centroid", 0.15)
	v.SetDefault("similarity.weights.rms_energy", 0.05)
	v.SetDefault("similarity.weights.zero_crossing_rate", 0.05)
	v.SetDefault("similarity.weights.mfccs", 0.55)
	v.SetDefault("similarity.report", false)

	v.SetDefault("pipeline.workers", runtime.NumCPU())

	v.SetDefault("output.suffix", "speakers")
	v.SetDefault("output.speaker_label", "Speaker %d")

	v.SetDefault("transcript.clean_text", false)
	v.SetDefault("transcript.collapse_runes", "的了吗呢嘛啊哦额")

	v.SetDefault("metrics.textfile", "")
}

// NewConfiguration creates a new Configuration instance with default settings
func NewConfiguration() *Configuration {
	v := viper.New()
	setDefaults(v)
	return &Configuration{viper: v}
}

// NewConfigurationFromFile creates a Configuration instance from a config file
func NewConfigurationFromFile(configFile string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	return &Configuration{viper: v}, nil
}

// NewConfigurationFromEnv creates a Configuration instance that reads from environment variables
// such as DIARIZER_AUDIO_FFMPEG_PATH or DIARIZER_PIPELINE_WORKERS
func NewConfigurationFromEnv() (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DIARIZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// FFMPEG_PATH is honoured without the prefix, matching common tooling
	if err := v.BindEnv("audio.ffmpeg_path", "DIARIZER_AUDIO_FFMPEG_PATH", "FFMPEG_PATH"); err != nil {
		return nil, fmt.Errorf("failed to bind ffmpeg path env: %w", err)
	}

	return &Configuration{viper: v}, nil
}

// Viper exposes the underlying instance so command-line flags can be bound onto it
func (c *Configuration) Viper() *viper.Viper {
	return c.viper
}

// Set overrides a single key, taking precedence over file and env values
func (c *Configuration) Set(key string, value interface{}) {
	c.viper.Set(key, value)
}

// GetDebugMode returns whether debug logging is enabled
func (c *Configuration) GetDebugMode() bool {
	return c.viper.GetBool("debug")
}

// GetFFmpegPath returns the ffmpeg binary used for decoding
func (c *Configuration) GetFFmpegPath() string {
	return c.viper.GetString("audio.ffmpeg_path")
}

// GetSampleRate returns the decode sample rate in Hz
func (c *Configuration) GetSampleRate() int {
	return c.viper.GetInt("audio.sample_rate")
}

// GetNFFT returns the STFT frame length in samples
func (c *Configuration) GetNFFT() int {
	return c.viper.GetInt("features.n_fft")
}

// GetHopLength returns the STFT hop in samples
func (c *Configuration) GetHopLength() int {
	return c.viper.GetInt("features.hop_length")
}

// GetNMels returns the number of mel bands feeding the MFCC transform
func (c *Configuration) GetNMels() int {
	return c.viper.GetInt("features.n_mels")
}

// GetPitchFMin returns the lowest frequency considered by the pitch tracker
func (c *Configuration) GetPitchFMin() float64 {
	return c.viper.GetFloat64("features.pitch_fmin")
}

// GetPitchFMax returns the upper (exclusive) frequency bound of the pitch tracker
func (c *Configuration) GetPitchFMax() float64 {
	return c.viper.GetFloat64("features.pitch_fmax")
}

// GetPitchThreshold returns the per-frame relative magnitude threshold for pitch peaks
func (c *Configuration) GetPitchThreshold() float64 {
	return c.viper.GetFloat64("features.pitch_threshold")
}

// GetDefaultSpeakers returns the speaker count used when none is requested
func (c *Configuration) GetDefaultSpeakers() int {
	return c.viper.GetInt("clustering.default_speakers")
}

// GetSimilarityWeight returns the weight of one similarity field
// (pitch, spectral_centroid, rms_energy, zero_crossing_rate or mfccs)
func (c *Configuration) GetSimilarityWeight(field string) float64 {
	return c.viper.GetFloat64("similarity.weights." + field)
}

// GetSimilarityReport returns whether adjacent-segment similarity scores are logged
func (c *Configuration) GetSimilarityReport() bool {
	return c.viper.GetBool("similarity.report")
}

// GetWorkers returns the number of concurrent feature extraction tasks
func (c *Configuration) GetWorkers() int {
	workers := c.viper.GetInt("pipeline.workers")
	if workers < 1 {
		return 1
	}
	return workers
}

// GetOutputSuffix returns the suffix appended to the audio stem for the result file
func (c *Configuration) GetOutputSuffix() string {
	return c.viper.GetString("output.suffix")
}

// GetSpeakerLabel returns the printf pattern used to name speakers
func (c *Configuration) GetSpeakerLabel() string {
	return c.viper.GetString("output.speaker_label")
}

// GetCleanText returns whether transcript text is de-duplicated before assembly
func (c *Configuration) GetCleanText() bool {
	return c.viper.GetBool("transcript.clean_text")
}

// GetCollapseRunes returns the characters whose immediate repetitions are collapsed
func (c *Configuration) GetCollapseRunes() string {
	return c.viper.GetString("transcript.collapse_runes")
}

// GetMetricsTextfile returns the Prometheus textfile path, empty when disabled
func (c *Configuration) GetMetricsTextfile() string {
	return c.viper.GetString("metrics.textfile")
}

// SetDebugMode enables or disables debug logging at runtime
func (c *Configuration) SetDebugMode(enabled bool) {
	c.viper.Set("debug", enabled)
}
