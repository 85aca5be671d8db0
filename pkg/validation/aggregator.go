package validation

import (
	"math"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// LevelScores is the numeric value each level contributes to the overall score.
type LevelScores struct {
	Excellent float64 `json:"excellent" yaml:"excellent"`
	Good      float64 `json:"good" yaml:"good"`
	Fair      float64 `json:"fair" yaml:"fair"`
	Poor      float64 `json:"poor" yaml:"poor"`
	Rejected  float64 `json:"rejected" yaml:"rejected"`
}

func DefaultLevelScores() LevelScores {
	return LevelScores{Excellent: 100, Good: 80, Fair: 60, Poor: 35, Rejected: 10}
}

// DefaultOverallBoundaries are the profile-independent cut points for the overall level.
func DefaultOverallBoundaries() Band {
	return Band{Excellent: 90, Good: 75, Fair: 55, Poor: 35}
}

func (s LevelScores) Score(level models.QualityLevel) float64 {
	switch level {
	case models.LevelExcellent:
		return s.Excellent
	case models.LevelGood:
		return s.Good
	case models.LevelFair:
		return s.Fair
	case models.LevelPoor:
		return s.Poor
	default:
		return s.Rejected
	}
}

// Aggregator combines per-metric levels into an overall score and level.
type Aggregator struct {
	levelScores LevelScores
	boundaries  Band
}

// NewAggregator uses DefaultLevelScores and DefaultOverallBoundaries.
func NewAggregator() *Aggregator {
	return &Aggregator{
		levelScores: DefaultLevelScores(),
		boundaries:  DefaultOverallBoundaries(),
	}
}

// NewAggregatorWith builds an aggregator from custom level scores and overall boundaries.
func NewAggregatorWith(scores LevelScores, boundaries Band) (*Aggregator, error) {
	if err := boundaries.validate("overall", true); err != nil {
		return nil, apperrors.NewConfigurationError("invalid overall boundaries", err)
	}
	ordered := []float64{scores.Excellent, scores.Good, scores.Fair, scores.Poor, scores.Rejected}
	for i, v := range ordered {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.NewConfigurationError("level scores must be finite", nil)
		}
		if i > 0 && v > ordered[i-1] {
			return nil, apperrors.NewConfigurationError("level scores must not increase from excellent to rejected", nil)
		}
	}
	return &Aggregator{levelScores: scores, boundaries: boundaries}, nil
}

// Aggregate returns the raw weighted sum of level scores and its level.
// Weights are not renormalized. The score is rounded to six decimals so the
// summation order cannot push a value across a boundary.
func (a *Aggregator) Aggregate(levels models.MetricLevels, weights QualityWeights) (float64, models.QualityLevel) {
	var score float64
	for _, m := range models.AllMetrics {
		score += weights.Get(m) * a.levelScores.Score(levels.Get(m))
	}
	score = math.Round(score*1e6) / 1e6
	return score, ClassifyBand(score, a.boundaries, true)
}
