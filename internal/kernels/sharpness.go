package kernels

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// SharpnessResult is the distribution of the 4-neighbour Laplacian response.
type SharpnessResult struct {
	Variance float64
	Mean     float64
}

type stripMoments struct {
	n    int
	mean float64
	m2   float64 // sum of squared deviations from mean
}

var laplacianPool = sync.Pool{
	New: func() interface{} {
		s := make([]float64, 0, 4096)
		return &s
	},
}

// Sharpness computes the variance of the Laplacian [0 1 0; 1 -4 1; 0 1 0]
// over the interior of the luma plane. Higher is sharper.
func Sharpness(ctx context.Context, pb *PixelBuffer) (SharpnessResult, error) {
	gray := pb.Luma()
	width, height := pb.Width(), pb.Height()
	if width < 3 || height < 3 {
		return SharpnessResult{}, ErrInsufficientSize
	}

	interior := height - 2
	parts := make([]stripMoments, stripCount(interior))

	err := forEachStrip(ctx, interior, func(i, r0, r1 int) error {
		bufp := laplacianPool.Get().(*[]float64)
		data := (*bufp)[:0]
		defer func() {
			*bufp = data[:0]
			laplacianPool.Put(bufp)
		}()

		for y := r0 + 1; y < r1+1; y++ {
			above := gray.Pix[(y-1)*gray.Stride:]
			row := gray.Pix[y*gray.Stride:]
			below := gray.Pix[(y+1)*gray.Stride:]
			for x := 1; x < width-1; x++ {
				laplacian := -4*float64(row[x]) +
					float64(above[x]) + float64(below[x]) +
					float64(row[x-1]) + float64(row[x+1])
				data = append(data, laplacian)
			}
		}

		mean, variance := stat.MeanVariance(data, nil)
		n := len(data)
		m2 := 0.0
		if n > 1 {
			m2 = variance * float64(n-1)
		}
		parts[i] = stripMoments{n: n, mean: mean, m2: m2}
		return nil
	})
	if err != nil {
		return SharpnessResult{}, err
	}

	mean, variance := poolMoments(parts)
	return SharpnessResult{Variance: variance, Mean: mean}, nil
}

// poolMoments merges per-strip moments in slice order and returns the
// overall mean and unbiased variance.
func poolMoments(parts []stripMoments) (float64, float64) {
	var total int
	var weighted float64
	for _, p := range parts {
		total += p.n
		weighted += float64(p.n) * p.mean
	}
	if total == 0 {
		return 0, 0
	}
	mean := weighted / float64(total)

	var m2 float64
	for _, p := range parts {
		d := p.mean - mean
		m2 += p.m2 + float64(p.n)*d*d
	}
	if total < 2 {
		return mean, 0
	}
	return mean, m2 / float64(total-1)
}
