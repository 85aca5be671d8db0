package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/image-quality-engine/internal/analyzer"
	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/internal/observer"
	"github.com/anime-shed/image-quality-engine/pkg/config"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// BatchScheduler fans a batch out over a bounded worker pool and gathers
// the outcomes back in input order.
type BatchScheduler struct {
	analyzer analyzer.ImageAnalyzer
	events   observer.Subject
}

// NewBatchScheduler creates a scheduler. events may be nil.
func NewBatchScheduler(a analyzer.ImageAnalyzer, events observer.Subject) *BatchScheduler {
	return &BatchScheduler{analyzer: a, events: events}
}

// RunBatch analyzes every request of job and returns once all have settled.
// The batch runs at most min(job.Concurrency, profile.MaxConcurrentAnalyses,
// len(requests)) workers; the analyzer's limiter keeps concurrent batches
// within the profile's cap as a whole. A failing item is recorded at its
// index and never stops its siblings.
func (s *BatchScheduler) RunBatch(ctx context.Context, job models.BatchJob, profile *config.Profile) *models.BatchOutcome {
	start := time.Now()
	n := len(job.Requests)
	items := make([]models.BatchItem, n)

	effective := profile
	if profile != nil && job.Timeout > 0 {
		p := profile.Clone()
		p.AnalysisTimeout = job.Timeout
		effective = &p
	}

	var poolStats PoolStats
	if n > 0 {
		pool := NewWorkerPool(workerCount(job.Concurrency, effective, n))
		pool.Start()

		for i, req := range job.Requests {
			i, req := i, req
			pool.Submit(func() {
				items[i] = s.runOne(ctx, i, req, effective)
			})
		}

		pool.Wait()
		pool.Close()
		poolStats = pool.GetStats()
	}

	outcome := &models.BatchOutcome{
		Items:          items,
		Statistics:     ComputeStatistics(items),
		ProcessingTime: time.Since(start).Seconds(),
	}

	logger.WithFields(logrus.Fields{
		"total":      outcome.Statistics.Total,
		"successful": outcome.Statistics.Successful,
		"failed":     outcome.Statistics.Failed,
		"workers":    poolStats.Workers,
		"completed":  poolStats.CompletedJobs,
	}).Debug("Batch settled")

	if s.events != nil {
		name := ""
		if profile != nil {
			name = profile.Name
		}
		s.events.NotifyObservers(ctx, observer.AnalysisEvent{
			EventType:      observer.BatchCompleted,
			Profile:        name,
			ProcessingTime: time.Since(start),
			Success:        outcome.Statistics.Failed == 0,
			Metadata: map[string]interface{}{
				"total":  outcome.Statistics.Total,
				"failed": outcome.Statistics.Failed,
			},
		})
	}
	return outcome
}

func (s *BatchScheduler) runOne(ctx context.Context, index int, req models.AnalysisRequest, profile *config.Profile) (item models.BatchItem) {
	item = models.BatchItem{Index: index, Source: req.Source()}

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("source", item.Source).WithField("panic", r).Error("Analysis panicked")
			item.Result = nil
			item.Error = apperrors.Info(apperrors.NewInternalError("analysis panicked", nil))
		}
	}()

	res, err := s.analyzer.Analyze(ctx, req, profile)
	if err != nil {
		item.Error = apperrors.Info(err)
		return item
	}
	item.Result = res
	return item
}

// workerCount lets a job lower the profile's cap but never raise it.
func workerCount(requested int, profile *config.Profile, n int) int {
	limit := 1
	if profile != nil && profile.MaxConcurrentAnalyses > 0 {
		limit = profile.MaxConcurrentAnalyses
	}
	if requested > 0 {
		limit = min(limit, requested)
	}
	return min(limit, n)
}

// ComputeStatistics summarizes settled items. It only reads them.
func ComputeStatistics(items []models.BatchItem) models.BatchStatistics {
	stats := models.BatchStatistics{Total: len(items)}
	var scoreSum float64

	for _, item := range items {
		if !item.Succeeded() {
			stats.Failed++
			kind := string(apperrors.ErrorTypeInternal)
			if item.Error != nil {
				kind = item.Error.Kind
			}
			if stats.FailuresByKind == nil {
				stats.FailuresByKind = make(map[string]int)
			}
			stats.FailuresByKind[kind]++
			continue
		}

		stats.Successful++
		stats.LevelCounts.Add(item.Result.OverallLevel)
		scoreSum += item.Result.OverallScore
		stats.TotalProcessingTime += item.Result.ProcessingTime
	}

	if stats.Successful > 0 {
		stats.MeanOverallScore = scoreSum / float64(stats.Successful)
	}
	return stats
}
