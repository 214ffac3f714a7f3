package features

import (
	"math"
	"sort"
)

// pitchParams bounds the frequency band and relative magnitude threshold of the
// peak tracker
type pitchParams struct {
	fmin      float64
	fmax      float64
	threshold float64
}

// tinyShift guards the parabolic interpolation denominator (smallest normal float32)
const tinyShift = 0x1p-126

// trackPitches finds spectral peaks per frame and returns parallel matrices of
// interpolated peak frequencies and magnitudes. Entries that are not peaks are
// zero. A bin is a peak when it lies in [fmin, fmax), its magnitude exceeds
// threshold times the frame maximum, and it is a local maximum over frequency.
func trackPitches(spec [][]float64, freqs []float64, sampleRate, nFFT int, p pitchParams) (pitches, mags [][]float64) {
	fmax := math.Min(p.fmax, float64(sampleRate)/2)
	fmin := math.Max(p.fmin, 0)

	pitches = make([][]float64, len(spec))
	mags = make([][]float64, len(spec))

	for t, frame := range spec {
		bins := len(frame)
		pitchRow := make([]float64, bins)
		magRow := make([]float64, bins)
		pitches[t] = pitchRow
		mags[t] = magRow

		var peak float64
		for _, s := range frame {
			if s > peak {
				peak = s
			}
		}
		ref := p.threshold * peak

		gated := make([]float64, bins)
		for k, s := range frame {
			if s > ref {
				gated[k] = s
			}
		}

		for k := 1; k < bins-1; k++ {
			if freqs[k] < fmin || freqs[k] >= fmax {
				continue
			}
			if !(gated[k] > gated[k-1] && gated[k] >= gated[k+1]) {
				continue
			}

			avg := 0.5 * (frame[k+1] - frame[k-1])
			curvature := 2*frame[k] - frame[k+1] - frame[k-1]
			if math.Abs(curvature) < tinyShift {
				curvature++
			}
			shift := avg / curvature

			pitchRow[k] = (float64(k) + shift) * float64(sampleRate) / float64(nFFT)
			magRow[k] = frame[k] + 0.5*avg*shift
		}

		// The last bin can only peak against its edge-padded neighbour, where
		// interpolation terms are zero.
		last := bins - 1
		if last > 0 && freqs[last] >= fmin && freqs[last] < fmax && gated[last] > gated[last-1] {
			pitchRow[last] = float64(last) * float64(sampleRate) / float64(nFFT)
			magRow[last] = frame[last]
		}
	}
	return pitches, mags
}

// meanPitch averages the tracked frequencies whose magnitude is strictly above
// the median of the whole magnitude matrix. It returns 0 when nothing is
// selected, which includes silent windows.
func meanPitch(pitches, mags [][]float64) float64 {
	median := matrixMedian(mags)

	var sum float64
	var n int
	for t, row := range mags {
		for k, m := range row {
			if m > median {
				sum += pitches[t][k]
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// matrixMedian returns the median of every entry in m. Only non-zero entries
// are materialized; zeros are counted.
func matrixMedian(m [][]float64) float64 {
	var total int
	var nonzero []float64
	for _, row := range m {
		total += len(row)
		for _, v := range row {
			if v != 0 {
				nonzero = append(nonzero, v)
			}
		}
	}
	if total == 0 {
		return 0
	}
	sort.Float64s(nonzero)
	zeros := total - len(nonzero)

	if total%2 == 1 {
		return kthWithZeros(nonzero, zeros, total/2)
	}
	return 0.5 * (kthWithZeros(nonzero, zeros, total/2-1) + kthWithZeros(nonzero, zeros, total/2))
}

// kthWithZeros returns the k-th smallest element of sorted merged with the
// given number of zeros
func kthWithZeros(sorted []float64, zeros, k int) float64 {
	negatives := sort.SearchFloat64s(sorted, 0)
	switch {
	case k < negatives:
		return sorted[k]
	case k < negatives+zeros:
		return 0
	default:
		return sorted[k-zeros]
	}
}
