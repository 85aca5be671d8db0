package analyzer

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type imagingDecoder struct {
	autoOrient bool
}

// NewDecoder returns the default decoder. JPEG EXIF orientation is applied
// so width and height describe the image as displayed.
func NewDecoder() Decoder {
	return &imagingDecoder{autoOrient: true}
}

func (d *imagingDecoder) Decode(data []byte) (image.Image, string, error) {
	format, err := sniffFormat(data)
	if err != nil {
		return nil, "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(d.autoOrient))
	if err != nil {
		return nil, format, err
	}
	return img, format, nil
}

// sniffFormat reads just enough of data to name its encoding.
func sniffFormat(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	return format, err
}
