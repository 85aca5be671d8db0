package models

import (
	"fmt"
	"strings"
	"time"
)

// Metric identifies one of the five metric families.
type Metric int

const (
	MetricPerceptual Metric = iota
	MetricSharpness
	MetricExposure
	MetricResolution
	MetricAspectRatio
)

// AllMetrics lists every metric in aggregation order.
var AllMetrics = [5]Metric{
	MetricPerceptual,
	MetricSharpness,
	MetricExposure,
	MetricResolution,
	MetricAspectRatio,
}

func (m Metric) String() string {
	switch m {
	case MetricPerceptual:
		return "perceptual"
	case MetricSharpness:
		return "sharpness"
	case MetricExposure:
		return "exposure"
	case MetricResolution:
		return "resolution"
	case MetricAspectRatio:
		return "aspect_ratio"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// HigherIsBetter reports the direction in which the metric's raw value improves.
// Perceptual distortion is the only metric where lower is better.
func (m Metric) HigherIsBetter() bool {
	return m != MetricPerceptual
}

// QualityLevel is a totally ordered verdict; larger values are better.
type QualityLevel int

const (
	LevelRejected QualityLevel = iota
	LevelPoor
	LevelFair
	LevelGood
	LevelExcellent
)

// AllLevels lists the levels from best to worst.
var AllLevels = [5]QualityLevel{LevelExcellent, LevelGood, LevelFair, LevelPoor, LevelRejected}

func (l QualityLevel) String() string {
	switch l {
	case LevelExcellent:
		return "excellent"
	case LevelGood:
		return "good"
	case LevelFair:
		return "fair"
	case LevelPoor:
		return "poor"
	case LevelRejected:
		return "rejected"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Better reports whether l ranks strictly above other.
func (l QualityLevel) Better(other QualityLevel) bool {
	return l > other
}

// ParseQualityLevel accepts the lower-case level names produced by String.
func ParseQualityLevel(s string) (QualityLevel, error) {
	for _, level := range AllLevels {
		if strings.EqualFold(strings.TrimSpace(s), level.String()) {
			return level, nil
		}
	}
	return LevelRejected, fmt.Errorf("unknown quality level %q", s)
}

func (l QualityLevel) MarshalText() ([]byte, error) {
	if l < LevelRejected || l > LevelExcellent {
		return nil, fmt.Errorf("invalid quality level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *QualityLevel) UnmarshalText(text []byte) error {
	level, err := ParseQualityLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// MetricScores carries one raw value per metric, in each metric's native units.
type MetricScores struct {
	Perceptual  float64 `json:"perceptual" yaml:"perceptual"`
	Sharpness   float64 `json:"sharpness" yaml:"sharpness"`
	Exposure    float64 `json:"exposure" yaml:"exposure"`
	Resolution  float64 `json:"resolution" yaml:"resolution"`
	AspectRatio float64 `json:"aspect_ratio" yaml:"aspect_ratio"`
}

func (s MetricScores) Get(m Metric) float64 {
	switch m {
	case MetricPerceptual:
		return s.Perceptual
	case MetricSharpness:
		return s.Sharpness
	case MetricExposure:
		return s.Exposure
	case MetricResolution:
		return s.Resolution
	case MetricAspectRatio:
		return s.AspectRatio
	}
	panic(fmt.Sprintf("unknown metric %d", int(m)))
}

func (s *MetricScores) Set(m Metric, v float64) {
	switch m {
	case MetricPerceptual:
		s.Perceptual = v
	case MetricSharpness:
		s.Sharpness = v
	case MetricExposure:
		s.Exposure = v
	case MetricResolution:
		s.Resolution = v
	case MetricAspectRatio:
		s.AspectRatio = v
	default:
		panic(fmt.Sprintf("unknown metric %d", int(m)))
	}
}

// MetricLevels carries one classified level per metric.
type MetricLevels struct {
	Perceptual  QualityLevel `json:"perceptual" yaml:"perceptual"`
	Sharpness   QualityLevel `json:"sharpness" yaml:"sharpness"`
	Exposure    QualityLevel `json:"exposure" yaml:"exposure"`
	Resolution  QualityLevel `json:"resolution" yaml:"resolution"`
	AspectRatio QualityLevel `json:"aspect_ratio" yaml:"aspect_ratio"`
}

func (l MetricLevels) Get(m Metric) QualityLevel {
	switch m {
	case MetricPerceptual:
		return l.Perceptual
	case MetricSharpness:
		return l.Sharpness
	case MetricExposure:
		return l.Exposure
	case MetricResolution:
		return l.Resolution
	case MetricAspectRatio:
		return l.AspectRatio
	}
	panic(fmt.Sprintf("unknown metric %d", int(m)))
}

func (l *MetricLevels) Set(m Metric, v QualityLevel) {
	switch m {
	case MetricPerceptual:
		l.Perceptual = v
	case MetricSharpness:
		l.Sharpness = v
	case MetricExposure:
		l.Exposure = v
	case MetricResolution:
		l.Resolution = v
	case MetricAspectRatio:
		l.AspectRatio = v
	default:
		panic(fmt.Sprintf("unknown metric %d", int(m)))
	}
}

// UniformLevels returns a MetricLevels with every metric set to level.
func UniformLevels(level QualityLevel) MetricLevels {
	var levels MetricLevels
	for _, m := range AllMetrics {
		levels.Set(m, level)
	}
	return levels
}

// AnalysisOptions toggles the optional parts of an AnalysisResult.
type AnalysisOptions struct {
	IncludeDetailedMetrics bool `json:"include_detailed_metrics" yaml:"include_detailed_metrics"`
	IncludeHistogram       bool `json:"include_histogram" yaml:"include_histogram"`
	IncludeRecommendations bool `json:"include_recommendations" yaml:"include_recommendations"`
}

// DefaultAnalysisOptions enables recommendations only.
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{IncludeRecommendations: true}
}

// AnalysisRequest identifies one image by Path or by Data. Name, when set,
// is used for the extension check on buffers.
type AnalysisRequest struct {
	ID      string          `json:"id,omitempty"`
	Path    string          `json:"path,omitempty"`
	Name    string          `json:"name,omitempty"`
	Data    []byte          `json:"-"`
	Options AnalysisOptions `json:"options"`
}

// Source returns a printable reference to the image.
func (r AnalysisRequest) Source() string {
	switch {
	case r.Path != "":
		return r.Path
	case r.Name != "":
		return r.Name
	default:
		return "<buffer>"
	}
}

// QualityIssue represents one detected quality problem.
type QualityIssue struct {
	Code        string  `json:"code" yaml:"code"`
	Metric      string  `json:"metric,omitempty" yaml:"metric,omitempty"`
	Message     string  `json:"message" yaml:"message"`
	Severity    string  `json:"severity" yaml:"severity"` // "error", "warning"
	ActualValue float64 `json:"actual_value,omitempty" yaml:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// AnalysisResult is the verdict for one image. It is never mutated after the
// analyzer returns it and may be shared between goroutines.
type AnalysisResult struct {
	ID          string    `json:"id" yaml:"id"`
	Source      string    `json:"source" yaml:"source"`
	Profile     string    `json:"profile" yaml:"profile"`
	Format      string    `json:"format,omitempty" yaml:"format,omitempty"`
	FileSize    int64     `json:"file_size" yaml:"file_size"`
	Fingerprint string    `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`

	Scores       MetricScores `json:"scores" yaml:"scores"`
	Levels       MetricLevels `json:"levels" yaml:"levels"`
	OverallScore float64      `json:"overall_score" yaml:"overall_score"`
	OverallLevel QualityLevel `json:"overall_level" yaml:"overall_level"`

	Width       int     `json:"width" yaml:"width"`
	Height      int     `json:"height" yaml:"height"`
	TotalPixels int     `json:"total_pixels" yaml:"total_pixels"`
	AspectRatio float64 `json:"aspect_ratio" yaml:"aspect_ratio"`

	ProcessingTime  float64        `json:"processing_time" yaml:"processing_time"`
	IssuesDetected  []QualityIssue `json:"issues_detected" yaml:"issues_detected"`
	Recommendations []string       `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`

	Details *AnalysisDetails `json:"details,omitempty" yaml:"details,omitempty"`
	Cached  bool             `json:"cached" yaml:"cached"`
}

// Copy returns a shallow copy. Slices and Details are shared and must be
// treated as read-only.
func (r *AnalysisResult) Copy() *AnalysisResult {
	c := *r
	return &c
}

// ErrorInfo is the serialized form of an analysis failure.
type ErrorInfo struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}
