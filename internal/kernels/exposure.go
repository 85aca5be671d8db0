package kernels

import (
	"context"
	"math"
)

// Exposure bins fold the 256 luma levels into 8 ranges of 32 levels.
const (
	ExposureBins  = 8
	levelsPerBin  = 256 / ExposureBins
	shadowBin     = 0
	highlightBin  = ExposureBins - 1
	midtoneFirst  = 2
	midtoneLast   = 5
	midtoneWeight = 50.0
)

// ExposureConfig holds the coverage bounds the exposure score is measured against.
type ExposureConfig struct {
	MaxShadowClip      float64
	MaxHighlightClip   float64
	MinMidtoneCoverage float64
}

// ExposureResult describes the luma distribution and the resulting 0-100 score.
type ExposureResult struct {
	Score        float64
	Histogram    [256]int
	Bins         [ExposureBins]float64
	Shadow       float64
	Midtone      float64
	Highlight    float64
	EmptyBins    int
	MeanLuma     float64
	Overexposed  bool
	Underexposed bool
}

// Exposure scores how well the luma histogram is spread. Clipped shadows and
// highlights beyond their allowance, and thin midtone coverage, are penalized.
func Exposure(ctx context.Context, pb *PixelBuffer, cfg ExposureConfig) (ExposureResult, error) {
	gray := pb.Luma()
	width, height := pb.Width(), pb.Height()

	partials := make([][256]int, stripCount(height))
	err := forEachStrip(ctx, height, func(i, y0, y1 int) error {
		hist := &partials[i]
		for y := y0; y < y1; y++ {
			for _, v := range gray.Pix[y*gray.Stride : y*gray.Stride+width] {
				hist[v]++
			}
		}
		return nil
	})
	if err != nil {
		return ExposureResult{}, err
	}

	var res ExposureResult
	for _, part := range partials {
		for level, count := range part {
			res.Histogram[level] += count
		}
	}

	total := width * height
	var lumaSum uint64
	var binCounts [ExposureBins]int
	for level, count := range res.Histogram {
		lumaSum += uint64(level) * uint64(count)
		binCounts[level/levelsPerBin] += count
	}

	for b, count := range binCounts {
		res.Bins[b] = float64(count) / float64(total)
		if count == 0 {
			res.EmptyBins++
		}
	}
	res.MeanLuma = float64(lumaSum) / float64(total)
	res.Shadow = res.Bins[shadowBin]
	res.Highlight = res.Bins[highlightBin]
	for b := midtoneFirst; b <= midtoneLast; b++ {
		res.Midtone += res.Bins[b]
	}

	res.Overexposed = res.Highlight > cfg.MaxHighlightClip
	res.Underexposed = res.Shadow > cfg.MaxShadowClip

	score := 100 -
		clipPenalty(res.Highlight, cfg.MaxHighlightClip) -
		clipPenalty(res.Shadow, cfg.MaxShadowClip) -
		midtoneDeficit(res.Midtone, cfg.MinMidtoneCoverage)
	res.Score = clamp(score, 0, 100)
	return res, nil
}

func clipPenalty(fraction, allowance float64) float64 {
	if allowance >= 1 {
		return 0
	}
	return 100 * math.Max(0, fraction-allowance) / (1 - allowance)
}

func midtoneDeficit(fraction, minimum float64) float64 {
	if minimum <= 0 {
		return 0
	}
	return midtoneWeight * math.Max(0, minimum-fraction) / minimum
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
