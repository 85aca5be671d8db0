package config

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/pkg/validation"
)

// Profile names shipped with the engine.
const (
	ProfileDefault = "default"
	ProfilePremium = "premium"
	ProfileBulk    = "bulk"
)

// Profile is a named, read-only bundle of thresholds, weights and resource limits.
type Profile struct {
	Name                  string                       `json:"name" yaml:"name"`
	Thresholds            validation.QualityThresholds `json:"thresholds" yaml:"thresholds"`
	Weights               validation.QualityWeights    `json:"weights" yaml:"weights"`
	MaxConcurrentAnalyses int                          `json:"max_concurrent_analyses" yaml:"max_concurrent_analyses"`
	AnalysisTimeout       time.Duration                `json:"analysis_timeout" yaml:"analysis_timeout"`
	SupportedFormats      []string                     `json:"supported_formats" yaml:"supported_formats"`
	MaxImageSize          int64                        `json:"max_image_size" yaml:"max_image_size"`
}

// DefaultProfile returns the general-purpose profile.
func DefaultProfile() Profile {
	return Profile{
		Name:                  ProfileDefault,
		Thresholds:            validation.DefaultQualityThresholds(),
		Weights:               validation.DefaultQualityWeights(),
		MaxConcurrentAnalyses: 5,
		AnalysisTimeout:       30 * time.Second,
		SupportedFormats:      []string{"jpg", "jpeg", "png", "webp", "bmp", "tiff"},
		MaxImageSize:          50 * 1024 * 1024, // 50MB
	}
}

// PremiumProfile tightens every band and allows more time per image.
func PremiumProfile() Profile {
	p := DefaultProfile()
	p.Name = ProfilePremium
	t := &p.Thresholds
	t.Perceptual = validation.Band{Excellent: 15, Good: 25, Fair: 40, Poor: 55}
	t.Sharpness = validation.Band{Excellent: 800, Good: 400, Fair: 200, Poor: 100}
	t.Exposure = validation.Band{Excellent: 95, Good: 85, Fair: 70, Poor: 50}
	t.Resolution = validation.Band{Excellent: 250, Good: 200, Fair: 150, Poor: 100}
	t.AspectRatio = validation.Band{Excellent: 98, Good: 95, Fair: 90, Poor: 75}
	t.MinWidth = 1200
	t.MinHeight = 900
	t.MaxShadowClip = 0.05
	t.MaxHighlightClip = 0.02
	t.MinMidtoneCoverage = 0.50
	t.MaxEmptyBins = 3
	t.AspectTolerance = 0.02
	p.MaxConcurrentAnalyses = 3
	p.AnalysisTimeout = 60 * time.Second
	p.MaxImageSize = 100 * 1024 * 1024 // 100MB
	return p
}

// BulkProfile relaxes the bands for high-volume catalog imports.
func BulkProfile() Profile {
	p := DefaultProfile()
	p.Name = ProfileBulk
	t := &p.Thresholds
	t.Perceptual = validation.Band{Excellent: 25, Good: 40, Fair: 60, Poor: 80}
	t.Sharpness = validation.Band{Excellent: 300, Good: 120, Fair: 60, Poor: 25}
	t.Exposure = validation.Band{Excellent: 85, Good: 70, Fair: 50, Poor: 30}
	t.Resolution = validation.Band{Excellent: 150, Good: 100, Fair: 75, Poor: 40}
	t.AspectRatio = validation.Band{Excellent: 90, Good: 85, Fair: 70, Poor: 50}
	t.MinWidth = 640
	t.MinHeight = 480
	t.MaxShadowClip = 0.15
	t.MaxHighlightClip = 0.10
	t.MinMidtoneCoverage = 0.30
	t.MaxEmptyBins = 5
	t.AspectTolerance = 0.08
	p.MaxConcurrentAnalyses = 10
	p.AnalysisTimeout = 15 * time.Second
	p.MaxImageSize = 25 * 1024 * 1024 // 25MB
	return p
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	c := p
	c.Thresholds = p.Thresholds.Clone()
	c.SupportedFormats = append([]string(nil), p.SupportedFormats...)
	return c
}

// SupportsFormat reports whether ext (with or without a leading dot) is allowed.
func (p Profile) SupportsFormat(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return ext != "" && slices.Contains(p.SupportedFormats, ext)
}

// Validate checks the whole profile. It is called when a profile enters a Registry.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.NewConfigurationError("profile name cannot be empty", nil)
	}
	if err := p.Thresholds.Validate(); err != nil {
		return wrapProfileError(p.Name, err)
	}
	if err := p.Weights.Validate(); err != nil {
		return wrapProfileError(p.Name, err)
	}
	if p.MaxConcurrentAnalyses <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("profile %s: max_concurrent_analyses must be positive, got %d", p.Name, p.MaxConcurrentAnalyses), nil)
	}
	if p.AnalysisTimeout <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("profile %s: analysis_timeout must be positive, got %s", p.Name, p.AnalysisTimeout), nil)
	}
	if p.MaxImageSize <= 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("profile %s: max_image_size must be positive, got %d", p.Name, p.MaxImageSize), nil)
	}
	if len(p.SupportedFormats) == 0 {
		return apperrors.NewConfigurationError(fmt.Sprintf("profile %s: supported_formats cannot be empty", p.Name), nil)
	}

	if !p.Weights.SumsToOne() {
		logger.WithFields(logrus.Fields{
			"profile": p.Name,
			"sum":     math.Round(p.Weights.Sum()*1e6) / 1e6,
		}).Warn("Profile weights do not sum to 1; overall scores are not renormalized")
	}
	return nil
}

func wrapProfileError(name string, err error) error {
	if appErr, ok := apperrors.As(err); ok {
		return apperrors.NewConfigurationError(fmt.Sprintf("profile %s: %s", name, appErr.Message), appErr.Cause)
	}
	return apperrors.NewConfigurationError(fmt.Sprintf("profile %s", name), err)
}
