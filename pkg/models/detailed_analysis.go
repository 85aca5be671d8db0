package models

// AnalysisDetails holds per-kernel intermediate values. Only present when
// AnalysisOptions.IncludeDetailedMetrics or IncludeHistogram is set.
type AnalysisDetails struct {
	Exposure   *ExposureDetails   `json:"exposure,omitempty" yaml:"exposure,omitempty"`
	Perceptual *PerceptualDetails `json:"perceptual,omitempty" yaml:"perceptual,omitempty"`
	Sharpness  *SharpnessDetails  `json:"sharpness,omitempty" yaml:"sharpness,omitempty"`
	Aspect     *AspectDetails     `json:"aspect,omitempty" yaml:"aspect,omitempty"`

	// Histogram is the 256-bin luma histogram.
	Histogram []int `json:"histogram,omitempty" yaml:"histogram,omitempty"`
}

// ExposureDetails describes the folded luma histogram.
type ExposureDetails struct {
	Bins              [8]float64 `json:"bins" yaml:"bins"`
	ShadowFraction    float64    `json:"shadow_fraction" yaml:"shadow_fraction"`
	MidtoneFraction   float64    `json:"midtone_fraction" yaml:"midtone_fraction"`
	HighlightFraction float64    `json:"highlight_fraction" yaml:"highlight_fraction"`
	EmptyBins         int        `json:"empty_bins" yaml:"empty_bins"`
	MeanLuma          float64    `json:"mean_luma" yaml:"mean_luma"`
	Overexposed       bool       `json:"overexposed" yaml:"overexposed"`
	Underexposed      bool       `json:"underexposed" yaml:"underexposed"`
}

// PerceptualDetails holds the natural-scene statistics behind the perceptual score.
type PerceptualDetails struct {
	Shape           float64 `json:"shape" yaml:"shape"`
	Variance        float64 `json:"variance" yaml:"variance"`
	PairCorrelation float64 `json:"pair_correlation" yaml:"pair_correlation"`
	SampledWidth    int     `json:"sampled_width" yaml:"sampled_width"`
	SampledHeight   int     `json:"sampled_height" yaml:"sampled_height"`
}

type SharpnessDetails struct {
	LaplacianMean     float64 `json:"laplacian_mean" yaml:"laplacian_mean"`
	LaplacianVariance float64 `json:"laplacian_variance" yaml:"laplacian_variance"`
}

type AspectDetails struct {
	NearestRatio float64 `json:"nearest_ratio" yaml:"nearest_ratio"`
	Deviation    float64 `json:"deviation" yaml:"deviation"`
	Recognized   bool    `json:"recognized" yaml:"recognized"`
}
