package kernels

import (
	"math"
	"testing"
)

var standardRatios = []float64{1, 4.0 / 3.0, 3.0 / 2.0, 16.0 / 9.0, 3.0 / 4.0, 2.0 / 3.0, 9.0 / 16.0}

func TestResolution(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          float64
	}{
		{"exact minimum", 800, 600, 100},
		{"double", 1600, 1200, 200},
		{"narrow", 799, 600, 99.875},
		{"short side limits", 4000, 300, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolution(tt.width, tt.height, 800, 600)
			if math.Abs(res.Score-tt.want) > 1e-9 {
				t.Errorf("Expected score %f, got %f", tt.want, res.Score)
			}
			if res.TotalPixels != tt.width*tt.height {
				t.Errorf("Expected %d pixels, got %d", tt.width*tt.height, res.TotalPixels)
			}
		})
	}
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		nearest       float64
		recognized    bool
	}{
		{"square", 1000, 1000, 1, true},
		{"full hd", 1920, 1080, 16.0 / 9.0, true},
		{"portrait", 1080, 1440, 3.0 / 4.0, true},
		{"slightly off 4:3", 1000, 740, 4.0 / 3.0, true},
		{"panorama", 3000, 1000, 16.0 / 9.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := AspectRatio(tt.width, tt.height, standardRatios, 0.05)
			if math.Abs(res.NearestRatio-tt.nearest) > 1e-12 {
				t.Errorf("Expected nearest ratio %f, got %f", tt.nearest, res.NearestRatio)
			}
			if res.Recognized != tt.recognized {
				t.Errorf("Expected recognized=%v (deviation %f)", tt.recognized, res.Deviation)
			}
			if res.Score < 0 || res.Score > 100 {
				t.Errorf("Score out of range: %f", res.Score)
			}
			wantScore := 100 * math.Max(0, 1-res.Deviation)
			if math.Abs(res.Score-wantScore) > 1e-9 {
				t.Errorf("Expected score %f, got %f", wantScore, res.Score)
			}
		})
	}
}

func TestAspectRatio_ExactMatchScoresFull(t *testing.T) {
	res := AspectRatio(1920, 1080, standardRatios, 0.05)
	if res.Deviation > 1e-12 || math.Abs(res.Score-100) > 1e-9 {
		t.Errorf("Expected exact 16:9 match, got deviation %g score %f", res.Deviation, res.Score)
	}
}

func TestAspectRatio_ExtremeRatioClampsToZero(t *testing.T) {
	res := AspectRatio(10000, 100, standardRatios, 0.05)
	if res.Score != 0 {
		t.Errorf("Expected score 0 for 100:1, got %f", res.Score)
	}
	if res.Recognized {
		t.Error("Expected 100:1 not to be recognized")
	}
}
