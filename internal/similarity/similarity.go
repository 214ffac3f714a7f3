// Package similarity scores how alike two segments sound.
//
// The score is a weighted combination of MFCC cosine similarity and absolute
// differences of the scalar features. Higher means more similar. It is a
// diagnostic: clustering uses Euclidean distance on the clustering view and
// does not consult this score.
package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"diarizer/internal/config"
	"diarizer/internal/features"
)

// Weights holds the contribution of each feature to the score
type Weights struct {
	Pitch            float64
	SpectralCentroid float64
	RMSEnergy        float64
	ZeroCrossingRate float64
	MFCCs            float64
}

// DefaultWeights returns the standard weighting
func DefaultWeights() Weights {
	return Weights{
		Pitch:            0.20,
		SpectralCentroid: 0.15,
		RMSEnergy:        0.05,
		ZeroCrossingRate: 0.05,
		MFCCs:            0.55,
	}
}

// WeightsFromConfig reads similarity.weights.* from cfg
func WeightsFromConfig(cfg *config.Configuration) Weights {
	return Weights{
		Pitch:            cfg.GetSimilarityWeight("pitch"),
		SpectralCentroid: cfg.GetSimilarityWeight("spectral_centroid"),
		RMSEnergy:        cfg.GetSimilarityWeight("rms_energy"),
		ZeroCrossingRate: cfg.GetSimilarityWeight("zero_crossing_rate"),
		MFCCs:            cfg.GetSimilarityWeight("mfccs"),
	}
}

// Scorer computes pairwise similarity with a fixed set of weights
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer. The weights are copied and cannot change afterwards.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Weights returns a copy of the scorer's weights
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns
//
//	w.MFCCs·cos(a.MFCCs, b.MFCCs) − Σ w_f·|a_f − b_f|
//
// over pitch, spectral centroid, RMS energy and zero-crossing rate. It is
// symmetric in a and b.
func (s *Scorer) Score(a, b features.FeatureVector) float64 {
	w := s.weights
	score := w.MFCCs * cosine(a.MFCCs[:], b.MFCCs[:])
	score -= w.Pitch * math.Abs(a.Pitch-b.Pitch)
	score -= w.SpectralCentroid * math.Abs(a.SpectralCentroid-b.SpectralCentroid)
	score -= w.RMSEnergy * math.Abs(a.RMSEnergy-b.RMSEnergy)
	score -= w.ZeroCrossingRate * math.Abs(a.ZeroCrossingRate-b.ZeroCrossingRate)
	return score
}

// Adjacent scores every consecutive pair of vectors; element i compares
// segment i with segment i+1.
func (s *Scorer) Adjacent(vs []features.FeatureVector) []float64 {
	if len(vs) < 2 {
		return nil
	}
	out := make([]float64, len(vs)-1)
	for i := range out {
		out[i] = s.Score(vs[i], vs[i+1])
	}
	return out
}

// cosine is 0 when either vector has zero norm
func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
