package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
)

func TestBuiltinProfilesAreValid(t *testing.T) {
	for _, p := range BuiltinProfiles() {
		t.Run(p.Name, func(t *testing.T) {
			assert.NoError(t, p.Validate())
		})
	}
}

func TestDefaultProfileValues(t *testing.T) {
	p := DefaultProfile()

	assert.Equal(t, 5, p.MaxConcurrentAnalyses)
	assert.Equal(t, 30*time.Second, p.AnalysisTimeout)
	assert.Equal(t, 800, p.Thresholds.MinWidth)
	assert.Equal(t, 600, p.Thresholds.MinHeight)
	assert.True(t, p.SupportsFormat(".JPG"))
	assert.True(t, p.SupportsFormat("webp"))
	assert.False(t, p.SupportsFormat(".gif"))
	assert.False(t, p.SupportsFormat(""))
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"empty name", func(p *Profile) { p.Name = " " }},
		{"zero concurrency", func(p *Profile) { p.MaxConcurrentAnalyses = 0 }},
		{"zero timeout", func(p *Profile) { p.AnalysisTimeout = 0 }},
		{"zero max size", func(p *Profile) { p.MaxImageSize = 0 }},
		{"no formats", func(p *Profile) { p.SupportedFormats = nil }},
		{"negative weight", func(p *Profile) { p.Weights.Exposure = -1 }},
		{"band out of order", func(p *Profile) { p.Thresholds.Sharpness.Fair = 1000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration), "got %v", err)
		})
	}
}

func TestProfileWeightsNotSummingToOneAreAccepted(t *testing.T) {
	p := DefaultProfile()
	p.Weights.Perceptual = 0.9
	assert.NoError(t, p.Validate())
}

func TestRegistrySelect(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{"bulk", "default", "premium"}, r.Names())
	assert.Equal(t, ProfilePremium, r.Select("premium").Name)
	assert.Equal(t, ProfileBulk, r.Select(" BULK ").Name)
	assert.Equal(t, ProfileDefault, r.Select("").Name)
	assert.Equal(t, ProfileDefault, r.Select("ultra").Name)

	_, ok := r.Get("ultra")
	assert.False(t, ok)
}

func TestRegistryWithPreferred(t *testing.T) {
	r := DefaultRegistry().WithPreferred("Bulk")

	assert.Equal(t, ProfileBulk, r.Select("").Name)
	assert.Equal(t, ProfileDefault, r.Select("ultra").Name)
	assert.Equal(t, ProfilePremium, r.Select("premium").Name)

	unknown := DefaultRegistry().WithPreferred("ultra")
	assert.Equal(t, ProfileDefault, unknown.Select("").Name)
}

func TestNewRegistryRequiresDefault(t *testing.T) {
	_, err := NewRegistry(PremiumProfile())
	assert.Error(t, err)

	_, err = NewRegistry(DefaultProfile(), DefaultProfile())
	assert.Error(t, err)

	bad := BulkProfile()
	bad.MaxConcurrentAnalyses = -1
	_, err = NewRegistry(DefaultProfile(), bad)
	assert.Error(t, err)
}

func TestRegistryIsolatedFromCaller(t *testing.T) {
	p := DefaultProfile()
	r, err := NewRegistry(p)
	require.NoError(t, err)

	p.SupportedFormats[0] = "gif"
	assert.False(t, r.Select("default").SupportsFormat("gif"))
}

func TestParseRegistryOverrides(t *testing.T) {
	data := []byte(`
profiles:
  premium:
    max_concurrent_analyses: 4
    analysis_timeout: 90s
  studio:
    base: premium
    supported_formats: [png, tiff]
    thresholds:
      sharpness:
        excellent: 900
`)

	r, err := ParseRegistry(data)
	require.NoError(t, err)

	premium := r.Select("premium")
	assert.Equal(t, 4, premium.MaxConcurrentAnalyses)
	assert.Equal(t, 90*time.Second, premium.AnalysisTimeout)
	assert.Equal(t, 1200, premium.Thresholds.MinWidth)

	studio, ok := r.Get("studio")
	require.True(t, ok)
	assert.Equal(t, []string{"png", "tiff"}, studio.SupportedFormats)
	assert.Equal(t, 900.0, studio.Thresholds.Sharpness.Excellent)
	assert.Equal(t, 400.0, studio.Thresholds.Sharpness.Good)
	assert.Equal(t, 3, studio.MaxConcurrentAnalyses)

	assert.Equal(t, 5, r.Select("default").MaxConcurrentAnalyses)
}

func TestParseRegistryRejectsInvalidOverrides(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "profiles: [",
		"unknown base": "profiles:\n  x:\n    base: nope\n",
		"bad band":     "profiles:\n  default:\n    thresholds:\n      sharpness:\n        poor: 9999\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(data))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Len(t, r.Names(), 3)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  bulk:\n    max_image_size: 1024\n"), 0o600))

	r, err = LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), r.Select("bulk").MaxImageSize)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
