// Package kernels computes the raw quality signals of a decoded image.
//
// Every reduction walks the image in fixed strips of stripRows rows and
// combines partial results in strip order, so a given image produces the same
// floating-point values on any machine regardless of core count.
package kernels

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"

	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyImage            = errors.New("image has no pixels")
	ErrUnsupportedColorSpace = errors.New("unsupported color space")
	ErrInsufficientSize      = errors.New("image is smaller than the kernel window")
)

const stripRows = 64

// ChannelCount returns the number of color channels of img's pixel layout,
// or 0 when the layout is not recognized.
func ChannelCount(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return 1
	case *image.YCbCr, *image.Paletted:
		return 3
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA, *image.CMYK:
		return 4
	default:
		return 0
	}
}

// PixelBuffer is the 8-bit luma projection of a decoded image. It is
// read-only once built and safe to share between kernels.
type PixelBuffer struct {
	luma     *image.Gray
	channels int
}

// NewPixelBuffer validates img and projects it to luma.
func NewPixelBuffer(ctx context.Context, img image.Image) (*PixelBuffer, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	channels := ChannelCount(img)
	switch channels {
	case 1, 3, 4:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedColorSpace, img)
	}

	luma, err := toLuma(ctx, img)
	if err != nil {
		return nil, err
	}
	return &PixelBuffer{luma: luma, channels: channels}, nil
}

// Luma returns the luma plane. Its bounds start at (0,0).
func (p *PixelBuffer) Luma() *image.Gray { return p.luma }

func (p *PixelBuffer) Channels() int { return p.channels }
func (p *PixelBuffer) Width() int    { return p.luma.Rect.Dx() }
func (p *PixelBuffer) Height() int   { return p.luma.Rect.Dy() }

func toLuma(ctx context.Context, img image.Image) (*image.Gray, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	err := forEachStrip(ctx, height, func(_, y0, y1 int) error {
		for y := y0; y < y1; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
			sy := bounds.Min.Y + y

			switch src := img.(type) {
			case *image.Gray:
				off := src.PixOffset(bounds.Min.X, sy)
				copy(row, src.Pix[off:off+width])
			case *image.RGBA:
				off := src.PixOffset(bounds.Min.X, sy)
				for x := 0; x < width; x++ {
					i := off + x*4
					r := uint32(src.Pix[i]) * 0x101
					g := uint32(src.Pix[i+1]) * 0x101
					b := uint32(src.Pix[i+2]) * 0x101
					// same weights as color.GrayModel
					row[x] = uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 24)
				}
			default:
				for x := 0; x < width; x++ {
					row[x] = color.GrayModel.Convert(img.At(bounds.Min.X+x, sy)).(color.Gray).Y
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gray, nil
}

// forEachStrip runs fn over [0,rows) split into stripRows-row strips. Strip i
// always covers the same rows; the degree of parallelism only affects timing.
func forEachStrip(ctx context.Context, rows int, fn func(i, y0, y1 int) error) error {
	n := stripCount(rows)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		y0 := i * stripRows
		y1 := min(y0+stripRows, rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i, y0, y1)
		})
	}
	return g.Wait()
}

func stripCount(rows int) int {
	if rows <= 0 {
		return 0
	}
	return (rows + stripRows - 1) / stripRows
}
