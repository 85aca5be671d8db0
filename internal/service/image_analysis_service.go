package service

import (
	"context"
	"strings"

	"github.com/anime-shed/image-quality-engine/internal/analyzer"
	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/repository"
	"github.com/anime-shed/image-quality-engine/internal/scheduler"
	"github.com/anime-shed/image-quality-engine/pkg/config"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// ImageAnalysisService is the entry point shared by the CLI, the HTTP API
// and the task adapter. It resolves profiles by name and threads them
// through every call.
type ImageAnalysisService interface {
	AnalyzeImage(ctx context.Context, source string, profile string, options models.AnalysisOptions) (*models.AnalysisResult, error)
	AnalyzeUpload(ctx context.Context, name string, data []byte, profile string, options models.AnalysisOptions) (*models.AnalysisResult, error)
	AnalyzeBatch(ctx context.Context, sources []string, profile string, concurrency int, options models.AnalysisOptions) (*models.BatchOutcome, error)

	ValidateReference(source string) error
	Profiles() []string
}

type imageAnalysisService struct {
	registry  *config.Registry
	imageRepo repository.ImageRepository
	analyzer  analyzer.ImageAnalyzer
	scheduler *scheduler.BatchScheduler
}

// NewImageAnalysisService creates a new image analysis service
func NewImageAnalysisService(
	registry *config.Registry,
	imageRepository repository.ImageRepository,
	imageAnalyzer analyzer.ImageAnalyzer,
	batchScheduler *scheduler.BatchScheduler,
) ImageAnalysisService {
	return &imageAnalysisService{
		registry:  registry,
		imageRepo: imageRepository,
		analyzer:  imageAnalyzer,
		scheduler: batchScheduler,
	}
}

func (s *imageAnalysisService) AnalyzeImage(ctx context.Context, source string, profile string, options models.AnalysisOptions) (*models.AnalysisResult, error) {
	if err := s.ValidateReference(source); err != nil {
		return nil, err
	}
	req := models.AnalysisRequest{Path: source, Options: options}
	return s.analyzer.Analyze(ctx, req, s.registry.Select(profile))
}

func (s *imageAnalysisService) AnalyzeUpload(ctx context.Context, name string, data []byte, profile string, options models.AnalysisOptions) (*models.AnalysisResult, error) {
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("uploaded image is empty", nil)
	}
	req := models.AnalysisRequest{Name: name, Data: data, Options: options}
	return s.analyzer.Analyze(ctx, req, s.registry.Select(profile))
}

// AnalyzeBatch fails as a whole only when the batch itself is malformed.
// A bad reference is reported at its own index like any other failure.
func (s *imageAnalysisService) AnalyzeBatch(ctx context.Context, sources []string, profile string, concurrency int, options models.AnalysisOptions) (*models.BatchOutcome, error) {
	if len(sources) == 0 {
		return nil, apperrors.NewValidationError("batch has no sources", nil)
	}
	if concurrency < 0 {
		return nil, apperrors.NewValidationError("concurrency cannot be negative", nil)
	}

	requests := make([]models.AnalysisRequest, len(sources))
	for i, src := range sources {
		requests[i] = models.AnalysisRequest{Path: src, Options: options}
	}

	job := models.BatchJob{Requests: requests, Concurrency: concurrency}
	return s.scheduler.RunBatch(ctx, job, s.registry.Select(profile)), nil
}

func (s *imageAnalysisService) ValidateReference(source string) error {
	if strings.TrimSpace(source) == "" {
		return apperrors.NewValidationError("image source cannot be empty", nil)
	}
	return s.imageRepo.ValidateReference(source)
}

func (s *imageAnalysisService) Profiles() []string {
	return s.registry.Names()
}
