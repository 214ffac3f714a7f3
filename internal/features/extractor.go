package features

import (
	"errors"
	"fmt"

	"diarizer/internal/audio"
	derrors "diarizer/internal/errors"
)

// Params configures the analysis frames and the pitch tracker
type Params struct {
	SampleRate     int
	NFFT           int
	HopLength      int
	NMels          int
	PitchFMin      float64
	PitchFMax      float64
	PitchThreshold float64
}

// DefaultParams returns the analysis settings used for 16 kHz speech
func DefaultParams() Params {
	return Params{
		SampleRate:     audio.DefaultSampleRate,
		NFFT:           2048,
		HopLength:      512,
		NMels:          128,
		PitchFMin:      150,
		PitchFMax:      4000,
		PitchThreshold: 0.1,
	}
}

// Validate checks that the parameters describe a usable analysis setup
func (p Params) Validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	case p.NFFT < 4 || p.NFFT%2 != 0:
		return fmt.Errorf("n_fft must be an even number of at least 4, got %d", p.NFFT)
	case p.HopLength <= 0:
		return fmt.Errorf("hop length must be positive, got %d", p.HopLength)
	case p.NMels < NumMFCC:
		return fmt.Errorf("n_mels must be at least %d, got %d", NumMFCC, p.NMels)
	case p.PitchFMin < 0 || p.PitchFMax <= p.PitchFMin:
		return fmt.Errorf("invalid pitch band [%v, %v)", p.PitchFMin, p.PitchFMax)
	case p.PitchThreshold < 0 || p.PitchThreshold >= 1:
		return fmt.Errorf("pitch threshold must be in [0, 1), got %v", p.PitchThreshold)
	}
	return nil
}

// Extractor computes FeatureVectors from raw samples. Window, frequency table,
// mel filterbank and DCT basis are built once; an Extractor is read-only after
// construction and safe for concurrent use.
type Extractor struct {
	params     Params
	window     []float64
	freqs      []float64
	filterbank [][]float64
	dct        [][]float64
	pitch      pitchParams
}

// NewExtractor creates an Extractor for the given parameters
func NewExtractor(params Params) (*Extractor, error) {
	if err := params.Validate(); err != nil {
		return nil, derrors.Wrap(derrors.KindFeatureExtraction, "configure extractor", err)
	}
	return &Extractor{
		params:     params,
		window:     periodicHann(params.NFFT),
		freqs:      fftFrequencies(params.SampleRate, params.NFFT),
		filterbank: melFilterbank(params.SampleRate, params.NFFT, params.NMels),
		dct:        dctBasis(NumMFCC, params.NMels),
		pitch: pitchParams{
			fmin:      params.PitchFMin,
			fmax:      params.PitchFMax,
			threshold: params.PitchThreshold,
		},
	}, nil
}

// Params returns the parameters the extractor was built with
func (e *Extractor) Params() Params {
	return e.params
}

// Extract computes the feature vector of a sample window at the extractor's
// sample rate. Silence yields a valid vector with zero pitch, centroid and
// energy; an empty window is an error.
func (e *Extractor) Extract(samples []float64) (FeatureVector, error) {
	if len(samples) == 0 {
		return FeatureVector{}, derrors.New(derrors.KindFeatureExtraction, "extract", "empty sample window")
	}

	spec := magnitudeSpectrogram(samples, e.params.NFFT, e.params.HopLength, e.window)
	pitches, mags := trackPitches(spec, e.freqs, e.params.SampleRate, e.params.NFFT, e.pitch)

	v := FeatureVector{
		Pitch:            meanPitch(pitches, mags),
		SpectralCentroid: meanSpectralCentroid(spec, e.freqs),
		RMSEnergy:        meanRMS(samples, e.params.NFFT, e.params.HopLength),
		ZeroCrossingRate: meanZeroCrossingRate(samples, e.params.NFFT, e.params.HopLength),
		MFCCs:            meanMFCC(spec, e.filterbank, e.dct),
	}
	if err := v.Validate(); err != nil {
		return FeatureVector{}, derrors.Wrap(derrors.KindFeatureExtraction, "extract", err)
	}
	return v, nil
}

// ExtractWindow cuts [start, end) seconds out of signal and extracts its features
func (e *Extractor) ExtractWindow(signal *audio.Signal, start, end float64) (FeatureVector, error) {
	if signal == nil {
		return FeatureVector{}, derrors.Wrap(derrors.KindAudioDecode, "window", errors.New("no decoded audio"))
	}
	if signal.SampleRate != e.params.SampleRate {
		return FeatureVector{}, derrors.New(derrors.KindFeatureExtraction, "extract",
			fmt.Sprintf("signal sample rate %d does not match extractor rate %d", signal.SampleRate, e.params.SampleRate))
	}
	samples, err := signal.Window(start, end)
	if err != nil {
		return FeatureVector{}, err
	}
	return e.Extract(samples)
}
