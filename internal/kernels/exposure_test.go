package kernels

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
)

var testExposureConfig = ExposureConfig{
	MaxShadowClip:      0.10,
	MaxHighlightClip:   0.05,
	MinMidtoneCoverage: 0.40,
}

func TestExposure_MidGray(t *testing.T) {
	pb := mustBuffer(t, createTestImage(50, 50, color.RGBA{128, 128, 128, 255}))

	res, err := Exposure(context.Background(), pb, testExposureConfig)
	if err != nil {
		t.Fatal(err)
	}

	if res.Score != 100 {
		t.Errorf("Expected score 100, got %f", res.Score)
	}
	if res.Midtone != 1 || res.Shadow != 0 || res.Highlight != 0 {
		t.Errorf("Unexpected coverage: shadow=%f mid=%f highlight=%f", res.Shadow, res.Midtone, res.Highlight)
	}
	if res.EmptyBins != 7 {
		t.Errorf("Expected 7 empty bins, got %d", res.EmptyBins)
	}
	if res.MeanLuma != 128 {
		t.Errorf("Expected mean luma 128, got %f", res.MeanLuma)
	}
	if res.Histogram[128] != 2500 {
		t.Errorf("Expected all 2500 pixels at level 128, got %d", res.Histogram[128])
	}
}

func TestExposure_Gradient(t *testing.T) {
	pb := mustBuffer(t, createGradientImage(256, 130))

	res, err := Exposure(context.Background(), pb, testExposureConfig)
	if err != nil {
		t.Fatal(err)
	}

	for b, frac := range res.Bins {
		if math.Abs(frac-0.125) > 1e-12 {
			t.Errorf("Expected bin %d to hold 1/8 of pixels, got %f", b, frac)
		}
	}

	// highlight 0.125 over 0.05 allowance, shadow 0.125 over 0.10, midtones fine
	want := 100 - 100*0.075/0.95 - 100*0.025/0.9
	if math.Abs(res.Score-want) > 1e-9 {
		t.Errorf("Expected score %f, got %f", want, res.Score)
	}
	if !res.Overexposed || !res.Underexposed {
		t.Error("Expected both clip flags for a full ramp")
	}
	if res.EmptyBins != 0 {
		t.Errorf("Expected no empty bins, got %d", res.EmptyBins)
	}
}

func TestExposure_SplitBlackWhite(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 20; x < 40; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	res, err := Exposure(context.Background(), mustBuffer(t, img), testExposureConfig)
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 0 {
		t.Errorf("Expected score clamped to 0, got %f", res.Score)
	}
	if !res.Overexposed || !res.Underexposed {
		t.Error("Expected over- and underexposure to be flagged separately")
	}
	if res.EmptyBins != 6 {
		t.Errorf("Expected 6 empty bins, got %d", res.EmptyBins)
	}
}

func TestExposure_OnlyHighlights(t *testing.T) {
	pb := mustBuffer(t, createTestImage(20, 20, color.White))

	res, err := Exposure(context.Background(), pb, testExposureConfig)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Overexposed {
		t.Error("Expected white image to be overexposed")
	}
	if res.Underexposed {
		t.Error("Did not expect white image to be underexposed")
	}
	// full highlight penalty plus full midtone deficit
	if res.Score != 0 {
		t.Errorf("Expected score 0, got %f", res.Score)
	}
}

func TestClipPenalty(t *testing.T) {
	tests := []struct {
		fraction, allowance, want float64
	}{
		{0, 0.05, 0},
		{0.05, 0.05, 0},
		{1, 0.05, 100},
		{0.525, 0.05, 50},
		{0.5, 1, 0},
	}
	for _, tt := range tests {
		if got := clipPenalty(tt.fraction, tt.allowance); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("clipPenalty(%v, %v) = %v, want %v", tt.fraction, tt.allowance, got, tt.want)
		}
	}

	if got := midtoneDeficit(0.2, 0.4); math.Abs(got-25) > 1e-9 {
		t.Errorf("midtoneDeficit(0.2, 0.4) = %v, want 25", got)
	}
}
