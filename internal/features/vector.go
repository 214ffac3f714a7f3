// Package features computes per-segment acoustic feature vectors.
//
// A FeatureVector is the full record extracted for one transcript segment.
// Clustering does not use every field: ClusteringView selects the subset that
// the speaker clusterer operates on, so the record and the clustered view can
// evolve independently.
package features

import (
	"fmt"
	"math"
)

// NumMFCC is the number of mel-frequency cepstral coefficients kept per segment
const NumMFCC = 13

// ClusteringDims is the length of the vector returned by ClusteringView
const ClusteringDims = NumMFCC + 2

// FeatureVector is the acoustic summary of one segment. Every field is a mean
// over the analysis frames of the segment window.
type FeatureVector struct {
	Pitch            float64          `json:"pitch"`
	SpectralCentroid float64          `json:"spectral_centroid"`
	RMSEnergy        float64          `json:"rms_energy"`
	ZeroCrossingRate float64          `json:"zero_crossing_rate"`
	MFCCs            [NumMFCC]float64 `json:"mfccs"`
}

// ClusteringView returns the representation the speaker clusterer operates on:
// the 13 MFCC means followed by pitch and spectral centroid. RMS energy and
// zero-crossing rate are deliberately left out.
func ClusteringView(v FeatureVector) []float64 {
	out := make([]float64, 0, ClusteringDims)
	out = append(out, v.MFCCs[:]...)
	out = append(out, v.Pitch, v.SpectralCentroid)
	return out
}

// ClusteringMatrix applies ClusteringView to every vector, preserving order
func ClusteringMatrix(vs []FeatureVector) [][]float64 {
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = ClusteringView(v)
	}
	return out
}

// Validate reports the first NaN or infinite field
func (v FeatureVector) Validate() error {
	scalars := []struct {
		name  string
		value float64
	}{
		{"pitch", v.Pitch},
		{"spectral_centroid", v.SpectralCentroid},
		{"rms_energy", v.RMSEnergy},
		{"zero_crossing_rate", v.ZeroCrossingRate},
	}
	for _, s := range scalars {
		if math.IsNaN(s.value) || math.IsInf(s.value, 0) {
			return fmt.Errorf("%s is not finite: %v", s.name, s.value)
		}
	}
	for i, c := range v.MFCCs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("mfcc[%d] is not finite: %v", i, c)
		}
	}
	return nil
}
