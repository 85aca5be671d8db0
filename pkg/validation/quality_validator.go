package validation

import (
	"fmt"

	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// Issue codes reported in AnalysisResult.IssuesDetected.
const (
	IssueHighDistortion          = "high_distortion"
	IssueBlurry                  = "blurry"
	IssuePoorExposure            = "poor_exposure"
	IssueOverexposed             = "overexposed"
	IssueUnderexposed            = "underexposed"
	IssueNarrowTonalRange        = "narrow_tonal_range"
	IssueLowResolution           = "low_resolution"
	IssueAspectRatioMismatch     = "aspect_ratio_mismatch"
	IssueUnrecognizedAspectRatio = "unrecognized_aspect_ratio"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

var recommendations = map[string]string{
	IssueHighDistortion:          "Re-export the image from the original source with lighter compression and no resampling.",
	IssueBlurry:                  "Re-shoot with the subject in focus, using a tripod or a faster shutter speed.",
	IssuePoorExposure:            "Adjust the lighting or exposure so tones spread evenly across the histogram.",
	IssueOverexposed:             "Reduce exposure or diffuse the light source to recover clipped highlights.",
	IssueUnderexposed:            "Increase exposure or add fill light to lift crushed shadows.",
	IssueNarrowTonalRange:        "Increase contrast or light the subject so the image uses the full tonal range.",
	IssueLowResolution:           "Supply a higher-resolution original that meets the minimum dimensions.",
	IssueAspectRatioMismatch:     "Crop the image to one of the supported aspect ratios.",
	IssueUnrecognizedAspectRatio: "Crop the image closer to a standard aspect ratio such as 1:1, 4:3 or 16:9.",
}

// Recommendation returns the remediation hint for an issue code.
func Recommendation(code string) (string, bool) {
	r, ok := recommendations[code]
	return r, ok
}

// QualityValidator handles image quality validation logic
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// ImageQualityMetrics represents the metrics needed for quality validation
type ImageQualityMetrics struct {
	Scores models.MetricScores
	Levels models.MetricLevels

	Width  int
	Height int

	ShadowFraction    float64
	HighlightFraction float64
	Overexposed       bool
	Underexposed      bool
	EmptyBins         int

	AspectRatio      float64
	AspectDeviation  float64
	AspectRecognized bool
}

func severityFor(level models.QualityLevel) string {
	if level == models.LevelRejected {
		return SeverityError
	}
	return SeverityWarning
}

func failing(level models.QualityLevel) bool {
	return !level.Better(models.LevelPoor)
}

// DetectIssues lists issues from every Poor or Rejected metric plus exposure
// and aspect anomalies. Order is fixed: perceptual, sharpness, exposure,
// resolution, aspect ratio.
func (qv *QualityValidator) DetectIssues(metrics ImageQualityMetrics) []models.QualityIssue {
	issues := []models.QualityIssue{}
	t := qv.thresholds

	if level := metrics.Levels.Perceptual; failing(level) {
		issues = append(issues, models.QualityIssue{
			Code:        IssueHighDistortion,
			Metric:      models.MetricPerceptual.String(),
			Message:     fmt.Sprintf("Image shows visible distortion (perceptual score %.1f).", metrics.Scores.Perceptual),
			Severity:    severityFor(level),
			ActualValue: metrics.Scores.Perceptual,
			Threshold:   t.Perceptual.Fair,
		})
	}

	if level := metrics.Levels.Sharpness; failing(level) {
		issues = append(issues, models.QualityIssue{
			Code:        IssueBlurry,
			Metric:      models.MetricSharpness.String(),
			Message:     fmt.Sprintf("Image is blurry (Laplacian variance %.1f).", metrics.Scores.Sharpness),
			Severity:    severityFor(level),
			ActualValue: metrics.Scores.Sharpness,
			Threshold:   t.Sharpness.Fair,
		})
	}

	if level := metrics.Levels.Exposure; failing(level) {
		issues = append(issues, models.QualityIssue{
			Code:        IssuePoorExposure,
			Metric:      models.MetricExposure.String(),
			Message:     fmt.Sprintf("Exposure is unbalanced (exposure score %.1f).", metrics.Scores.Exposure),
			Severity:    severityFor(level),
			ActualValue: metrics.Scores.Exposure,
			Threshold:   t.Exposure.Fair,
		})
	}
	if metrics.Overexposed {
		issues = append(issues, models.QualityIssue{
			Code:        IssueOverexposed,
			Metric:      models.MetricExposure.String(),
			Message:     fmt.Sprintf("%.1f%% of pixels are clipped highlights.", metrics.HighlightFraction*100),
			Severity:    SeverityWarning,
			ActualValue: metrics.HighlightFraction,
			Threshold:   t.MaxHighlightClip,
		})
	}
	if metrics.Underexposed {
		issues = append(issues, models.QualityIssue{
			Code:        IssueUnderexposed,
			Metric:      models.MetricExposure.String(),
			Message:     fmt.Sprintf("%.1f%% of pixels are crushed shadows.", metrics.ShadowFraction*100),
			Severity:    SeverityWarning,
			ActualValue: metrics.ShadowFraction,
			Threshold:   t.MaxShadowClip,
		})
	}
	if metrics.EmptyBins > t.MaxEmptyBins {
		issues = append(issues, models.QualityIssue{
			Code:        IssueNarrowTonalRange,
			Metric:      models.MetricExposure.String(),
			Message:     fmt.Sprintf("%d of 8 luma ranges are empty.", metrics.EmptyBins),
			Severity:    SeverityWarning,
			ActualValue: float64(metrics.EmptyBins),
			Threshold:   float64(t.MaxEmptyBins),
		})
	}

	if level := metrics.Levels.Resolution; failing(level) {
		issues = append(issues, models.QualityIssue{
			Code:   IssueLowResolution,
			Metric: models.MetricResolution.String(),
			Message: fmt.Sprintf("Resolution %dx%d is below the recommended size (minimum %dx%d).",
				metrics.Width, metrics.Height, t.MinWidth, t.MinHeight),
			Severity:    severityFor(level),
			ActualValue: metrics.Scores.Resolution,
			Threshold:   t.Resolution.Fair,
		})
	}

	if level := metrics.Levels.AspectRatio; failing(level) {
		issues = append(issues, models.QualityIssue{
			Code:        IssueAspectRatioMismatch,
			Metric:      models.MetricAspectRatio.String(),
			Message:     fmt.Sprintf("Aspect ratio %.3f is far from every supported ratio.", metrics.AspectRatio),
			Severity:    severityFor(level),
			ActualValue: metrics.AspectDeviation,
			Threshold:   t.AspectTolerance,
		})
	} else if !metrics.AspectRecognized {
		issues = append(issues, models.QualityIssue{
			Code:        IssueUnrecognizedAspectRatio,
			Metric:      models.MetricAspectRatio.String(),
			Message:     fmt.Sprintf("Aspect ratio %.3f does not match a supported ratio.", metrics.AspectRatio),
			Severity:    SeverityWarning,
			ActualValue: metrics.AspectDeviation,
			Threshold:   t.AspectTolerance,
		})
	}

	return issues
}

// Recommendations returns one remediation hint per issue, in issue order.
func (qv *QualityValidator) Recommendations(issues []models.QualityIssue) []string {
	hints := make([]string, 0, len(issues))
	for _, issue := range issues {
		if hint, ok := Recommendation(issue.Code); ok {
			hints = append(hints, hint)
		}
	}
	return hints
}

// ConvertIssuesToMessages converts quality issues to simple messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []models.QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []models.QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
