package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// periodicHann returns an n-point periodic Hann window (DFT-even), built from
// the symmetric n+1 point window with its last sample dropped.
func periodicHann(n int) []float64 {
	w := make([]float64, n+1)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)[:n]
}

// frameCount returns the number of centered frames covering n samples
func frameCount(n, hop int) int {
	return 1 + n/hop
}

// padConstant pads y with pad zeros on each side
func padConstant(y []float64, pad int) []float64 {
	out := make([]float64, len(y)+2*pad)
	copy(out[pad:], y)
	return out
}

// padEdge pads y with pad copies of its first and last sample
func padEdge(y []float64, pad int) []float64 {
	out := make([]float64, len(y)+2*pad)
	copy(out[pad:], y)
	if len(y) == 0 {
		return out
	}
	for i := 0; i < pad; i++ {
		out[i] = y[0]
		out[len(out)-1-i] = y[len(y)-1]
	}
	return out
}

// magnitudeSpectrogram computes |STFT| of y with centered, zero-padded frames.
// The result is indexed [frame][bin] with nFFT/2+1 bins.
func magnitudeSpectrogram(y []float64, nFFT, hop int, win []float64) [][]float64 {
	padded := padConstant(y, nFFT/2)
	frames := frameCount(len(y), hop)

	fft := fourier.NewFFT(nFFT)
	buf := make([]float64, nFFT)
	coeffs := make([]complex128, nFFT/2+1)

	spec := make([][]float64, frames)
	for t := 0; t < frames; t++ {
		frame := padded[t*hop : t*hop+nFFT]
		for i, x := range frame {
			buf[i] = x * win[i]
		}
		fft.Coefficients(coeffs, buf)

		mag := make([]float64, len(coeffs))
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
		}
		spec[t] = mag
	}
	return spec
}

// fftFrequencies returns the center frequency of each STFT bin
func fftFrequencies(sampleRate, nFFT int) []float64 {
	freqs := make([]float64, nFFT/2+1)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}
	return freqs
}

// meanSpectralCentroid averages the per-frame magnitude-weighted mean frequency.
// Silent frames contribute a centroid of zero.
func meanSpectralCentroid(spec [][]float64, freqs []float64) float64 {
	if len(spec) == 0 {
		return 0
	}
	var total float64
	for _, frame := range spec {
		var num, den float64
		for k, s := range frame {
			num += freqs[k] * s
			den += s
		}
		if den > 0 {
			total += num / den
		}
	}
	return total / float64(len(spec))
}

// meanRMS averages per-frame root-mean-square energy over centered, zero-padded frames
func meanRMS(y []float64, frameLength, hop int) float64 {
	padded := padConstant(y, frameLength/2)
	frames := frameCount(len(y), hop)

	var total float64
	for t := 0; t < frames; t++ {
		var sum float64
		for _, x := range padded[t*hop : t*hop+frameLength] {
			sum += x * x
		}
		total += math.Sqrt(sum / float64(frameLength))
	}
	return total / float64(frames)
}

// zeroCrossingThreshold treats samples this close to zero as exactly zero
const zeroCrossingThreshold = 1e-10

// meanZeroCrossingRate averages per-frame sign changes over centered,
// edge-padded frames. Zero counts as positive.
func meanZeroCrossingRate(y []float64, frameLength, hop int) float64 {
	padded := padEdge(y, frameLength/2)
	frames := frameCount(len(y), hop)

	negative := func(x float64) bool {
		if math.Abs(x) <= zeroCrossingThreshold {
			return false
		}
		return x < 0
	}

	var total float64
	for t := 0; t < frames; t++ {
		frame := padded[t*hop : t*hop+frameLength]
		crossings := 0
		for i := 1; i < len(frame); i++ {
			if negative(frame[i]) != negative(frame[i-1]) {
				crossings++
			}
		}
		total += float64(crossings) / float64(frameLength)
	}
	return total / float64(frames)
}
