package validation

import (
	"fmt"
	"math"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// Band holds the cut points of one metric. Excellent, Good and Fair are the
// level boundaries; values past Poor are Rejected. For higher-is-better
// metrics the cut points descend, for lower-is-better metrics they ascend.
type Band struct {
	Excellent float64 `json:"excellent" yaml:"excellent"`
	Good      float64 `json:"good" yaml:"good"`
	Fair      float64 `json:"fair" yaml:"fair"`
	Poor      float64 `json:"poor" yaml:"poor"`
}

func (b Band) cuts() [4]float64 {
	return [4]float64{b.Excellent, b.Good, b.Fair, b.Poor}
}

func (b Band) validate(name string, higherIsBetter bool) error {
	cuts := b.cuts()
	for _, c := range cuts {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%s: cut points must be finite", name)
		}
	}
	for i := 1; i < len(cuts); i++ {
		if higherIsBetter && cuts[i] > cuts[i-1] {
			return fmt.Errorf("%s: cut points must not increase (excellent >= good >= fair >= poor)", name)
		}
		if !higherIsBetter && cuts[i] < cuts[i-1] {
			return fmt.Errorf("%s: cut points must not decrease (excellent <= good <= fair <= poor)", name)
		}
	}
	return nil
}

// QualityThresholds defines configurable thresholds for quality validation
type QualityThresholds struct {
	Perceptual  Band `json:"perceptual" yaml:"perceptual"`
	Sharpness   Band `json:"sharpness" yaml:"sharpness"`
	Exposure    Band `json:"exposure" yaml:"exposure"`
	Resolution  Band `json:"resolution" yaml:"resolution"`
	AspectRatio Band `json:"aspect_ratio" yaml:"aspect_ratio"`

	// Resolution thresholds
	MinWidth  int `json:"min_width" yaml:"min_width"`
	MinHeight int `json:"min_height" yaml:"min_height"`

	// Exposure coverage bounds, as fractions of all pixels
	MaxShadowClip      float64 `json:"max_shadow_clip" yaml:"max_shadow_clip"`
	MaxHighlightClip   float64 `json:"max_highlight_clip" yaml:"max_highlight_clip"`
	MinMidtoneCoverage float64 `json:"min_midtone_coverage" yaml:"min_midtone_coverage"`
	MaxEmptyBins       int     `json:"max_empty_bins" yaml:"max_empty_bins"`

	ExpectedAspectRatios []float64 `json:"expected_aspect_ratios" yaml:"expected_aspect_ratios"`
	AspectTolerance      float64   `json:"aspect_tolerance" yaml:"aspect_tolerance"`
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		Perceptual:  Band{Excellent: 20, Good: 35, Fair: 50, Poor: 70},
		Sharpness:   Band{Excellent: 500, Good: 200, Fair: 100, Poor: 50},
		Exposure:    Band{Excellent: 90, Good: 75, Fair: 60, Poor: 40},
		Resolution:  Band{Excellent: 200, Good: 150, Fair: 100, Poor: 50},
		AspectRatio: Band{Excellent: 95, Good: 90, Fair: 80, Poor: 60},

		MinWidth:  800,
		MinHeight: 600,

		MaxShadowClip:      0.10,
		MaxHighlightClip:   0.05,
		MinMidtoneCoverage: 0.40,
		MaxEmptyBins:       4,

		ExpectedAspectRatios: []float64{1, 4.0 / 3.0, 3.0 / 2.0, 16.0 / 9.0, 3.0 / 4.0, 2.0 / 3.0, 9.0 / 16.0},
		AspectTolerance:      0.05,
	}
}

// Band returns the cut points for m.
func (t QualityThresholds) Band(m models.Metric) Band {
	switch m {
	case models.MetricPerceptual:
		return t.Perceptual
	case models.MetricSharpness:
		return t.Sharpness
	case models.MetricExposure:
		return t.Exposure
	case models.MetricResolution:
		return t.Resolution
	case models.MetricAspectRatio:
		return t.AspectRatio
	}
	panic(fmt.Sprintf("unknown metric %d", int(m)))
}

// Clone returns a copy that shares no slices with t.
func (t QualityThresholds) Clone() QualityThresholds {
	c := t
	c.ExpectedAspectRatios = append([]float64(nil), t.ExpectedAspectRatios...)
	return c
}

// Validate checks band ordering and coverage ranges.
func (t QualityThresholds) Validate() error {
	for _, m := range models.AllMetrics {
		if err := t.Band(m).validate(m.String(), m.HigherIsBetter()); err != nil {
			return apperrors.NewConfigurationError("invalid thresholds", err)
		}
	}

	switch {
	case t.MinWidth <= 0 || t.MinHeight <= 0:
		return apperrors.NewConfigurationError(fmt.Sprintf("minimum resolution must be positive, got %dx%d", t.MinWidth, t.MinHeight), nil)
	case !inUnitInterval(t.MaxShadowClip) || t.MaxShadowClip >= 1:
		return apperrors.NewConfigurationError(fmt.Sprintf("max_shadow_clip must be in [0,1), got %v", t.MaxShadowClip), nil)
	case !inUnitInterval(t.MaxHighlightClip) || t.MaxHighlightClip >= 1:
		return apperrors.NewConfigurationError(fmt.Sprintf("max_highlight_clip must be in [0,1), got %v", t.MaxHighlightClip), nil)
	case !inUnitInterval(t.MinMidtoneCoverage) || t.MinMidtoneCoverage == 0:
		return apperrors.NewConfigurationError(fmt.Sprintf("min_midtone_coverage must be in (0,1], got %v", t.MinMidtoneCoverage), nil)
	case t.MaxEmptyBins < 0 || t.MaxEmptyBins > 8:
		return apperrors.NewConfigurationError(fmt.Sprintf("max_empty_bins must be in [0,8], got %d", t.MaxEmptyBins), nil)
	case len(t.ExpectedAspectRatios) == 0:
		return apperrors.NewConfigurationError("expected_aspect_ratios must not be empty", nil)
	case !(t.AspectTolerance > 0) || math.IsInf(t.AspectTolerance, 0):
		return apperrors.NewConfigurationError(fmt.Sprintf("aspect_tolerance must be positive, got %v", t.AspectTolerance), nil)
	}

	for _, r := range t.ExpectedAspectRatios {
		if !(r > 0) || math.IsInf(r, 0) {
			return apperrors.NewConfigurationError(fmt.Sprintf("expected aspect ratio must be positive, got %v", r), nil)
		}
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
