// Package task maps protocol deliveries onto analysis calls. Every delivery
// gets exactly one response; failures are reported in the response, never
// returned.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/internal/service"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// Adapter handles one Task at a time, synchronously.
type Adapter struct {
	service service.ImageAnalysisService
	health  *HealthChecker
}

func NewAdapter(svc service.ImageAnalysisService, health *HealthChecker) *Adapter {
	return &Adapter{service: svc, health: health}
}

// Handle runs t and builds its response. A missing task ID is generated.
func (a *Adapter) Handle(ctx context.Context, t models.Task) models.TaskResponse {
	start := time.Now()
	resp := models.TaskResponse{
		TaskID:   t.TaskID,
		TaskType: t.TaskType,
		Status:   models.TaskStatusCompleted,
	}
	if resp.TaskID == "" {
		resp.TaskID = uuid.NewString()
	}

	opts := models.DefaultAnalysisOptions()
	if t.Options != nil {
		opts = *t.Options
	}

	var err error
	switch t.TaskType {
	case models.TaskAnalyzeImage:
		if t.ImagePath == "" {
			err = apperrors.NewValidationError("image_path is required for analyze_image", nil)
			break
		}
		resp.Result, err = a.service.AnalyzeImage(ctx, t.ImagePath, t.Config, opts)

	case models.TaskAnalyzeBatch:
		if len(t.ImagePaths) == 0 {
			err = apperrors.NewValidationError("image_paths is required for analyze_batch", nil)
			break
		}
		var outcome *models.BatchOutcome
		outcome, err = a.service.AnalyzeBatch(ctx, t.ImagePaths, t.Config, t.Concurrency, opts)
		if err == nil {
			resp.Results = outcome.Items
			resp.Statistics = &outcome.Statistics
		}

	case models.TaskHealthCheck:
		resp.Health = a.health.Report(ctx)

	default:
		err = apperrors.NewValidationError(fmt.Sprintf("unknown task type %q", t.TaskType), nil)
	}

	if err != nil {
		resp.Status = models.TaskStatusFailed
		resp.Result = nil
		resp.Error = apperrors.Info(err)
		logger.WithField("task_id", resp.TaskID).
			WithField("task_type", t.TaskType).
			WithField("error_kind", resp.Error.Kind).
			Warn("Task failed")
	}

	resp.ProcessingTime = time.Since(start).Seconds()
	return resp
}

// Failure builds the response for a delivery that could not be parsed.
func Failure(taskID string, err error) models.TaskResponse {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	return models.TaskResponse{
		TaskID: taskID,
		Status: models.TaskStatusFailed,
		Error:  apperrors.Info(err),
	}
}
