package analyzer

import (
	"context"
	"image"

	"github.com/anime-shed/image-quality-engine/pkg/config"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// ImageAnalyzer produces a quality verdict for one image under one profile
type ImageAnalyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest, profile *config.Profile) (*models.AnalysisResult, error)
}

// Decoder turns encoded bytes into pixels. format is the short name of the
// detected encoding ("jpeg", "png", ...).
type Decoder interface {
	Decode(data []byte) (img image.Image, format string, err error)
}
