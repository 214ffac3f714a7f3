package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"diarizer/internal/config"
	"diarizer/internal/features"
)

func vector(pitch, centroid float64, mfcc ...float64) features.FeatureVector {
	v := features.FeatureVector{Pitch: pitch, SpectralCentroid: centroid, RMSEnergy: 0.1, ZeroCrossingRate: 0.05}
	copy(v.MFCCs[:], mfcc)
	return v
}

func TestScorer_Score(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	t.Run("should score identical vectors as the mfcc weight", func(t *testing.T) {
		v := vector(180, 1200, 1, 2, 3)

		assert.InDelta(t, 0.55, scorer.Score(v, v), 1e-12)
	})

	t.Run("should be symmetric", func(t *testing.T) {
		a := vector(120, 900, -3, 4, 1, 0.5)
		b := vector(210, 1500, 2, -1, 0.3)

		assert.InDelta(t, scorer.Score(a, b), scorer.Score(b, a), 1e-12)
	})

	t.Run("should subtract weighted scalar differences", func(t *testing.T) {
		a := vector(100, 1000, 1, 0)
		b := vector(110, 1020, 1, 0)

		// 0.55·1 − 0.20·10 − 0.15·20
		assert.InDelta(t, 0.55-2-3, scorer.Score(a, b), 1e-12)
	})

	t.Run("should treat a zero mfcc vector as orthogonal", func(t *testing.T) {
		a := vector(100, 1000)
		b := vector(100, 1000, 1, 2)

		assert.InDelta(t, 0.0, scorer.Score(a, b), 1e-12)
	})

	t.Run("should rank a closer voice higher", func(t *testing.T) {
		ref := vector(120, 1000, 10, 5, 1)
		near := vector(125, 1010, 10, 5, 1.2)
		far := vector(220, 1800, -4, 7, 3)

		assert.Greater(t, scorer.Score(ref, near), scorer.Score(ref, far))
	})
}

func TestScorer_WeightsAreImmutable(t *testing.T) {
	w := DefaultWeights()
	scorer := NewScorer(w)

	w.MFCCs = 100
	got := scorer.Weights()
	got.Pitch = 100

	assert.NotEqual(t, got, scorer.Weights())
	assert.NotEqual(t, w, scorer.Weights())
	assert.Equal(t, DefaultWeights(), scorer.Weights())
}

func TestScorer_Adjacent(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	vs := []features.FeatureVector{vector(100, 1000, 1), vector(100, 1000, 1), vector(200, 1000, 1)}

	scores := scorer.Adjacent(vs)

	assert.Len(t, scores, 2)
	assert.InDelta(t, 0.55, scores[0], 1e-12)
	assert.InDelta(t, 0.55-20, scores[1], 1e-12)
	assert.Nil(t, scorer.Adjacent(vs[:1]))
}

func TestWeightsFromConfig(t *testing.T) {
	cfg := config.NewConfiguration()
	assert.Equal(t, DefaultWeights(), WeightsFromConfig(cfg))

	cfg.Set("similarity.weights.pitch", 0.5)
	assert.Equal(t, 0.5, WeightsFromConfig(cfg).Pitch)
}
