package kernels

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	perceptualMaxSide = 512
	mscnWindow        = 7
	mscnSigma         = 7.0 / 6.0
	mscnC             = 1.0

	// MSCN variance below this is treated as a flat image.
	flatVariance = 1e-12

	naturalShape       = 2.0
	naturalVariance    = 1.0
	naturalCorrelation = 0.4

	shapeWeight       = 0.5
	varianceWeight    = 0.3
	correlationWeight = 0.2
)

// PerceptualResult is a no-reference distortion estimate. Score runs from 0
// (natural statistics) to 100 (heavily distorted); lower is better.
type PerceptualResult struct {
	Score           float64
	Shape           float64
	Variance        float64
	PairCorrelation float64
	Width           int
	Height          int
}

// Perceptual measures how far the mean-subtracted contrast-normalized (MSCN)
// coefficients of the luma plane are from natural-scene statistics: a
// generalized Gaussian of shape 2, unit variance and a moderate correlation
// between horizontally and vertically adjacent coefficients.
func Perceptual(ctx context.Context, pb *PixelBuffer) (PerceptualResult, error) {
	plane, width, height := sampledLuma(pb.Luma())
	if width < mscnWindow || height < mscnWindow {
		return PerceptualResult{}, ErrInsufficientSize
	}

	mscn, err := mscnCoefficients(ctx, plane, width, height)
	if err != nil {
		return PerceptualResult{}, err
	}

	res := PerceptualResult{Width: width, Height: height}
	res.Shape, res.Variance = fitGGD(mscn)
	if res.Variance < flatVariance {
		res.Shape = 0
	} else {
		res.PairCorrelation = pairCorrelation(mscn, width, height)
	}

	dShape := math.Min(1, math.Abs(res.Shape-naturalShape)/naturalShape)
	dVariance := math.Min(1, math.Abs(res.Variance-naturalVariance))
	dCorrelation := math.Min(1, math.Abs(res.PairCorrelation-naturalCorrelation)/(1-naturalCorrelation))

	res.Score = 100 * (shapeWeight*dShape + varianceWeight*dVariance + correlationWeight*dCorrelation)
	return res, nil
}

// sampledLuma fits the plane into perceptualMaxSide on its long side and
// returns it as row-major float64 values. The short side is never shrunk
// below the MSCN window, so a thin strip that measures at a small size
// still measures at a larger one.
func sampledLuma(gray *image.Gray) ([]float64, int, int) {
	width, height := gray.Rect.Dx(), gray.Rect.Dy()

	if w, h := sampledSize(width, height); w != width || h != height {
		fitted := imaging.Resize(gray, w, h, imaging.Lanczos)
		width, height = fitted.Rect.Dx(), fitted.Rect.Dy()
		plane := make([]float64, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				plane[y*width+x] = float64(fitted.Pix[y*fitted.Stride+x*4])
			}
		}
		return plane, width, height
	}

	plane := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			plane[y*width+x] = float64(gray.Pix[y*gray.Stride+x])
		}
	}
	return plane, width, height
}

// sampledSize is the downscaled size of a width x height plane.
func sampledSize(width, height int) (int, int) {
	long, short := max(width, height), min(width, height)
	if long <= perceptualMaxSide {
		return width, height
	}
	scale := float64(perceptualMaxSide) / float64(long)
	if short >= mscnWindow {
		scale = math.Max(scale, float64(mscnWindow)/float64(short))
	}
	if scale >= 1 {
		return width, height
	}
	return max(1, int(math.Round(float64(width)*scale))), max(1, int(math.Round(float64(height)*scale)))
}

var gaussianKernel = sync.OnceValue(func() []float64 {
	k := make([]float64, mscnWindow)
	half := mscnWindow / 2
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * mscnSigma * mscnSigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
})

// mscnCoefficients computes (I - mu) / (sigma + C) with mu and sigma taken
// from a separable Gaussian window. Borders replicate the edge pixel.
func mscnCoefficients(ctx context.Context, plane []float64, width, height int) ([]float64, error) {
	squared := make([]float64, len(plane))
	for i, v := range plane {
		squared[i] = v * v
	}

	mu, err := gaussianBlur(ctx, plane, width, height)
	if err != nil {
		return nil, err
	}
	mu2, err := gaussianBlur(ctx, squared, width, height)
	if err != nil {
		return nil, err
	}

	mscn := make([]float64, len(plane))
	for i, v := range plane {
		sigma := math.Sqrt(math.Abs(mu2[i] - mu[i]*mu[i]))
		mscn[i] = (v - mu[i]) / (sigma + mscnC)
	}
	return mscn, nil
}

func gaussianBlur(ctx context.Context, src []float64, width, height int) ([]float64, error) {
	k := gaussianKernel()
	half := mscnWindow / 2

	tmp := make([]float64, len(src))
	err := forEachStrip(ctx, height, func(_, y0, y1 int) error {
		for y := y0; y < y1; y++ {
			row := src[y*width : (y+1)*width]
			for x := 0; x < width; x++ {
				var sum float64
				for i, w := range k {
					sx := min(max(x+i-half, 0), width-1)
					sum += w * row[sx]
				}
				tmp[y*width+x] = sum
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dst := make([]float64, len(src))
	err = forEachStrip(ctx, height, func(_, y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for i, w := range k {
					sy := min(max(y+i-half, 0), height-1)
					sum += w * tmp[sy*width+x]
				}
				dst[y*width+x] = sum
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

type ggdEntry struct {
	alpha float64
	ratio float64
}

// ggdTable maps candidate shape parameters to Γ(1/α)Γ(3/α)/Γ(2/α)².
var ggdTable = sync.OnceValue(func() []ggdEntry {
	const lo, hi, step = 0.2, 10.0, 0.001
	n := int(math.Round((hi-lo)/step)) + 1
	table := make([]ggdEntry, n)
	for i := range table {
		a := lo + float64(i)*step
		g2 := math.Gamma(2 / a)
		table[i] = ggdEntry{alpha: a, ratio: math.Gamma(1/a) * math.Gamma(3/a) / (g2 * g2)}
	}
	return table
})

// fitGGD estimates the shape of a zero-mean generalized Gaussian by moment
// matching and returns it with the second moment. A constant input has no
// defined shape and reports 0.
func fitGGD(x []float64) (shape, variance float64) {
	if len(x) == 0 {
		return 0, 0
	}
	n := float64(len(x))
	variance = floats.Dot(x, x) / n

	abs := make([]float64, len(x))
	for i, v := range x {
		abs[i] = math.Abs(v)
	}
	meanAbs := stat.Mean(abs, nil)
	if meanAbs == 0 {
		return 0, variance
	}

	target := variance / (meanAbs * meanAbs)
	best := math.Inf(1)
	for _, e := range ggdTable() {
		if d := math.Abs(e.ratio - target); d < best {
			best = d
			shape = e.alpha
		}
	}
	return shape, variance
}

// pairCorrelation averages the correlation of horizontally and vertically
// adjacent coefficients. Undefined correlations count as 0.
func pairCorrelation(mscn []float64, width, height int) float64 {
	left := make([]float64, 0, (width-1)*height)
	right := make([]float64, 0, (width-1)*height)
	for y := 0; y < height; y++ {
		row := mscn[y*width : (y+1)*width]
		left = append(left, row[:width-1]...)
		right = append(right, row[1:]...)
	}

	top := mscn[:(height-1)*width]
	bottom := mscn[width:]

	h := stat.Correlation(left, right, nil)
	v := stat.Correlation(top, bottom, nil)
	if math.IsNaN(h) {
		h = 0
	}
	if math.IsNaN(v) {
		v = 0
	}
	return (h + v) / 2
}
