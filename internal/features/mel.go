package features

import (
	"math"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above
const (
	melFSp        = 200.0 / 3
	melMinLogHz   = 1000.0
	melMinLogMel  = melMinLogHz / melFSp
	melLogStepDen = 27.0
)

var melLogStep = math.Log(6.4) / melLogStepDen

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

func melToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return melFSp * mel
}

// melFilterbank builds nMels triangular filters over the STFT bins, spanning
// 0 Hz to Nyquist, area-normalized (Slaney).
func melFilterbank(sampleRate, nFFT, nMels int) [][]float64 {
	freqs := fftFrequencies(sampleRate, nFFT)

	lo, hi := hzToMel(0), hzToMel(float64(sampleRate)/2)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = melToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	weights := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		lowerWidth := melF[m+1] - melF[m]
		upperWidth := melF[m+2] - melF[m+1]
		enorm := 2.0 / (melF[m+2] - melF[m])

		row := make([]float64, len(freqs))
		for k, f := range freqs {
			lower := (f - melF[m]) / lowerWidth
			upper := (melF[m+2] - f) / upperWidth
			w := math.Min(lower, upper)
			if w > 0 {
				row[k] = w * enorm
			}
		}
		weights[m] = row
	}
	return weights
}

// dctBasis returns the first nCoeffs rows of the orthonormal DCT-II matrix of size n
func dctBasis(nCoeffs, n int) [][]float64 {
	basis := make([][]float64, nCoeffs)
	for c := 0; c < nCoeffs; c++ {
		scale := math.Sqrt(2 / float64(n))
		if c == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for m := 0; m < n; m++ {
			row[m] = scale * math.Cos(math.Pi*float64(c)*float64(2*m+1)/float64(2*n))
		}
		basis[c] = row
	}
	return basis
}

const (
	powerFloor = 1e-10
	topDB      = 80.0
)

// meanMFCC computes MFCCs from a magnitude spectrogram and averages them over frames.
// Mel power is converted to decibels and clipped to topDB below the global peak
// before the DCT.
func meanMFCC(spec [][]float64, filterbank, basis [][]float64) [NumMFCC]float64 {
	var out [NumMFCC]float64
	if len(spec) == 0 {
		return out
	}

	db := make([][]float64, len(spec))
	peak := math.Inf(-1)
	for t, frame := range spec {
		row := make([]float64, len(filterbank))
		for m, filter := range filterbank {
			var power float64
			for k, w := range filter {
				if w != 0 {
					power += w * frame[k] * frame[k]
				}
			}
			row[m] = 10 * math.Log10(math.Max(powerFloor, power))
			if row[m] > peak {
				peak = row[m]
			}
		}
		db[t] = row
	}

	floor := peak - topDB
	for _, row := range db {
		for m, v := range row {
			if v < floor {
				row[m] = floor
			}
		}
		for c := 0; c < NumMFCC && c < len(basis); c++ {
			var coeff float64
			for m, b := range basis[c] {
				coeff += b * row[m]
			}
			out[c] += coeff
		}
	}

	for c := range out {
		out[c] /= float64(len(spec))
	}
	return out
}
