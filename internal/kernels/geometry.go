package kernels

import "math"

// ResolutionResult reports the pixel dimensions and their score relative to
// the minimum size: 100 means exactly the minimum on the tighter axis.
type ResolutionResult struct {
	Score       float64
	Width       int
	Height      int
	TotalPixels int
}

func Resolution(width, height, minWidth, minHeight int) ResolutionResult {
	res := ResolutionResult{Width: width, Height: height, TotalPixels: width * height}
	if minWidth <= 0 || minHeight <= 0 {
		return res
	}
	res.Score = 100 * math.Min(float64(width)/float64(minWidth), float64(height)/float64(minHeight))
	return res
}

// AspectResult compares width/height against a set of expected ratios.
type AspectResult struct {
	Score        float64
	Ratio        float64
	NearestRatio float64
	Deviation    float64
	Recognized   bool
}

// AspectRatio finds the expected ratio closest to width/height in relative
// terms. Score is 100*(1-deviation), clamped to [0,100]. A ratio further
// than tolerance from every expected ratio is not recognized.
func AspectRatio(width, height int, expected []float64, tolerance float64) AspectResult {
	if width <= 0 || height <= 0 {
		return AspectResult{Deviation: math.Inf(1)}
	}

	res := AspectResult{Ratio: float64(width) / float64(height), Deviation: math.Inf(1)}
	for _, e := range expected {
		if e <= 0 {
			continue
		}
		d := math.Abs(res.Ratio-e) / e
		if d < res.Deviation {
			res.Deviation = d
			res.NearestRatio = e
		}
	}

	if math.IsInf(res.Deviation, 1) {
		return res
	}
	res.Score = 100 * clamp(1-res.Deviation, 0, 1)
	res.Recognized = res.Deviation <= tolerance
	return res
}
