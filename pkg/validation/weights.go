package validation

import (
	"fmt"
	"math"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// QualityWeights are the per-metric contributions to the overall score.
type QualityWeights struct {
	Perceptual  float64 `json:"perceptual" yaml:"perceptual"`
	Sharpness   float64 `json:"sharpness" yaml:"sharpness"`
	Exposure    float64 `json:"exposure" yaml:"exposure"`
	Resolution  float64 `json:"resolution" yaml:"resolution"`
	AspectRatio float64 `json:"aspect_ratio" yaml:"aspect_ratio"`
}

func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		Perceptual:  0.35,
		Sharpness:   0.25,
		Exposure:    0.20,
		Resolution:  0.15,
		AspectRatio: 0.05,
	}
}

func (w QualityWeights) Get(m models.Metric) float64 {
	switch m {
	case models.MetricPerceptual:
		return w.Perceptual
	case models.MetricSharpness:
		return w.Sharpness
	case models.MetricExposure:
		return w.Exposure
	case models.MetricResolution:
		return w.Resolution
	case models.MetricAspectRatio:
		return w.AspectRatio
	}
	panic(fmt.Sprintf("unknown metric %d", int(m)))
}

// Sum adds the weights in AllMetrics order.
func (w QualityWeights) Sum() float64 {
	var sum float64
	for _, m := range models.AllMetrics {
		sum += w.Get(m)
	}
	return sum
}

// SumsToOne reports whether the weights add up to 1 within rounding error.
func (w QualityWeights) SumsToOne() bool {
	return math.Abs(w.Sum()-1) <= 1e-9
}

// Validate rejects negative or non-finite weights and an all-zero set.
// A sum other than 1 is allowed.
func (w QualityWeights) Validate() error {
	for _, m := range models.AllMetrics {
		v := w.Get(m)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return apperrors.NewConfigurationError(fmt.Sprintf("weight %s must be a non-negative number, got %v", m, v), nil)
		}
	}
	if w.Sum() <= 0 {
		return apperrors.NewConfigurationError("weights must not all be zero", nil)
	}
	return nil
}
