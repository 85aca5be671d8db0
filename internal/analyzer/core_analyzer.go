package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/kernels"
	"github.com/anime-shed/image-quality-engine/internal/observer"
	"github.com/anime-shed/image-quality-engine/internal/repository"
	"github.com/anime-shed/image-quality-engine/pkg/config"
	"github.com/anime-shed/image-quality-engine/pkg/models"
	"github.com/anime-shed/image-quality-engine/pkg/validation"
)

// QualityAnalyzer runs one image through load, decode, the metric kernels,
// classification and aggregation. It holds no per-analysis state and is safe
// for concurrent use.
type QualityAnalyzer struct {
	repo       repository.ImageRepository
	decoder    Decoder
	aggregator *validation.Aggregator
	cache      *ResultCache
	limiter    *Limiter
	events     observer.Subject
	newID      func() string
}

var _ ImageAnalyzer = (*QualityAnalyzer)(nil)

// NewQualityAnalyzer creates an analyzer reading local files with the
// default decoder and aggregator.
func NewQualityAnalyzer(opts ...Option) *QualityAnalyzer {
	a := &QualityAnalyzer{
		repo:       repository.NewLocalImageRepository(),
		decoder:    NewDecoder(),
		aggregator: validation.NewAggregator(),
		limiter:    NewLimiter(),
		newID:      defaultID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces the verdict for req under profile. Unsupported formats,
// missing files and oversized files fail before any pixel is decoded. The
// whole analysis is bounded by profile.AnalysisTimeout.
func (a *QualityAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest, profile *config.Profile) (*models.AnalysisResult, error) {
	if profile == nil {
		return nil, apperrors.NewConfigurationError("no profile supplied", nil)
	}

	start := time.Now()
	source := req.Source()
	a.publish(ctx, observer.AnalysisEvent{
		EventType: observer.AnalysisStarted,
		Source:    source,
		Profile:   profile.Name,
	})

	res, err := a.analyze(ctx, req, profile, start)
	if err != nil {
		appErr := apperrors.Wrap(err)
		a.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Source:         source,
			Profile:        profile.Name,
			ProcessingTime: time.Since(start),
			ErrorKind:      string(appErr.Type),
			ErrorMessage:   appErr.Message,
			Metadata:       failureMetadata(err),
		})
		return nil, appErr
	}

	a.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Source:         source,
		Profile:        profile.Name,
		ProcessingTime: time.Since(start),
		Success:        true,
		Level:          res.OverallLevel.String(),
		Metadata: map[string]interface{}{
			"overall_score": res.OverallScore,
			"cached":        res.Cached,
			"state":         StateDone.String(),
		},
	})
	return res, nil
}

func (a *QualityAnalyzer) analyze(parent context.Context, req models.AnalysisRequest, profile *config.Profile, start time.Time) (*models.AnalysisResult, error) {
	if req.Path == "" && req.Data == nil {
		return nil, apperrors.NewValidationError("request has neither a path nor image data", nil)
	}

	name := req.Name
	if name == "" && req.Path != "" {
		name = validation.ReferenceName(req.Path)
	}
	ext := path.Ext(name)
	if ext != "" && !profile.SupportsFormat(ext) {
		return nil, unsupportedFormat(ext, profile)
	}
	if req.Path == "" && profile.MaxImageSize > 0 && int64(len(req.Data)) > profile.MaxImageSize {
		return nil, apperrors.NewFileTooLargeError(
			fmt.Sprintf("image is %d bytes, limit is %d", len(req.Data), profile.MaxImageSize), nil)
	}

	ctx, cancel := context.WithTimeout(parent, profile.AnalysisTimeout)
	defer cancel()

	type outcome struct {
		res *models.AnalysisResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := a.run(ctx, req, profile, ext == "", start)
		done <- outcome{res, err}
	}()

	// The worker goroutine is abandoned on expiry; it observes ctx and
	// stops at its next strip boundary.
	select {
	case o := <-done:
		if o.err != nil {
			return nil, a.contextError(parent, profile, o.err)
		}
		return o.res, nil
	case <-ctx.Done():
		return nil, a.contextError(parent, profile, ctx.Err())
	}
}

// contextError maps context failures onto the taxonomy. Any expired deadline
// is a timeout; cancellation by the caller is not.
func (a *QualityAnalyzer) contextError(parent context.Context, profile *config.Profile, err error) error {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return apperrors.NewInternalError("analysis cancelled", parent.Err())
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return apperrors.NewTimeoutError("analysis deadline exceeded", parent.Err())
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError(
			fmt.Sprintf("analysis exceeded %s", profile.AnalysisTimeout), err)
	default:
		return err
	}
}

func (a *QualityAnalyzer) run(ctx context.Context, req models.AnalysisRequest, profile *config.Profile, sniff bool, start time.Time) (*models.AnalysisResult, error) {
	data := req.Data
	if req.Path != "" {
		obj, err := a.repo.Load(ctx, req.Path, profile.MaxImageSize)
		if err != nil {
			return nil, err
		}
		data = obj.Data
		a.publish(ctx, observer.AnalysisEvent{
			EventType: observer.ImageLoaded,
			Source:    req.Source(),
			Profile:   profile.Name,
			Metadata:  map[string]interface{}{"bytes": len(data), "backend": obj.Backend},
		})
	}

	if sniff {
		format, err := sniffFormat(data)
		if err != nil {
			return nil, apperrors.NewDecodeError("unrecognized image encoding", err)
		}
		if !profile.SupportsFormat(format) {
			return nil, unsupportedFormat(format, profile)
		}
	}

	fingerprint := Fingerprint(data)
	compute := func(ctx context.Context) (*models.AnalysisResult, error) {
		return a.compute(ctx, data, fingerprint, req, profile, start)
	}
	if a.cache == nil {
		return compute(ctx)
	}

	key := CacheKey(fingerprint, profile.Name, req.Options)
	res, err := a.cache.Do(ctx, key, profile.AnalysisTimeout, compute)
	if err != nil {
		return nil, err
	}
	// res is a private copy: stamp this caller's identity on it.
	res.Source = req.Source()
	if req.ID != "" {
		res.ID = req.ID
	}
	return res, nil
}

type kernelOutputs struct {
	perceptual kernels.PerceptualResult
	sharpness  kernels.SharpnessResult
	exposure   kernels.ExposureResult
	resolution kernels.ResolutionResult
	aspect     kernels.AspectResult
}

func (a *QualityAnalyzer) compute(ctx context.Context, data []byte, fingerprint string, req models.AnalysisRequest, profile *config.Profile, start time.Time) (*models.AnalysisResult, error) {
	var lc lifecycle
	if a.limiter != nil {
		release, err := a.limiter.Acquire(ctx, profile)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	res, err := a.computeStates(ctx, &lc, data, fingerprint, req, profile, start)
	if err != nil {
		failedIn := lc.state
		lc.fail()
		return nil, &stateError{state: failedIn, err: err}
	}
	return res, nil
}

func (a *QualityAnalyzer) computeStates(ctx context.Context, lc *lifecycle, data []byte, fingerprint string, req models.AnalysisRequest, profile *config.Profile, start time.Time) (*models.AnalysisResult, error) {
	if err := lc.advance(StateDecoding); err != nil {
		return nil, err
	}
	img, format, err := a.decoder.Decode(data)
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to decode image", err)
	}

	pb, err := kernels.NewPixelBuffer(ctx, img)
	if err != nil {
		return nil, kernelError(err)
	}

	out, err := runKernels(ctx, pb, profile.Thresholds)
	if err != nil {
		return nil, kernelError(err)
	}
	if err := lc.advance(StateMetricsComputed); err != nil {
		return nil, err
	}

	scores := models.MetricScores{
		Perceptual:  out.perceptual.Score,
		Sharpness:   out.sharpness.Variance,
		Exposure:    out.exposure.Score,
		Resolution:  out.resolution.Score,
		AspectRatio: out.aspect.Score,
	}
	levels := validation.ClassifyAll(scores, profile.Thresholds)
	overall, overallLevel := a.aggregator.Aggregate(levels, profile.Weights)
	if err := lc.advance(StateAggregated); err != nil {
		return nil, err
	}

	qv := validation.NewQualityValidatorWithThresholds(profile.Thresholds)
	issues := qv.DetectIssues(validation.ImageQualityMetrics{
		Scores:            scores,
		Levels:            levels,
		Width:             out.resolution.Width,
		Height:            out.resolution.Height,
		ShadowFraction:    out.exposure.Shadow,
		HighlightFraction: out.exposure.Highlight,
		Overexposed:       out.exposure.Overexposed,
		Underexposed:      out.exposure.Underexposed,
		EmptyBins:         out.exposure.EmptyBins,
		AspectRatio:       out.aspect.Ratio,
		AspectDeviation:   finite(out.aspect.Deviation),
		AspectRecognized:  out.aspect.Recognized,
	})

	result := &models.AnalysisResult{
		ID:             req.ID,
		Source:         req.Source(),
		Profile:        profile.Name,
		Format:         format,
		FileSize:       int64(len(data)),
		Fingerprint:    fingerprint,
		Timestamp:      start.UTC(),
		Scores:         scores,
		Levels:         levels,
		OverallScore:   overall,
		OverallLevel:   overallLevel,
		Width:          out.resolution.Width,
		Height:         out.resolution.Height,
		TotalPixels:    out.resolution.TotalPixels,
		AspectRatio:    out.aspect.Ratio,
		IssuesDetected: issues,
	}
	if result.ID == "" {
		result.ID = a.newID()
	}
	if req.Options.IncludeRecommendations {
		result.Recommendations = qv.Recommendations(issues)
	}
	result.Details = buildDetails(out, req.Options)
	result.ProcessingTime = time.Since(start).Seconds()

	if err := lc.advance(StateDone); err != nil {
		return nil, err
	}
	return result, nil
}

// runKernels computes all five metrics. Every kernel runs even when another
// one would already reject the image.
func runKernels(ctx context.Context, pb *kernels.PixelBuffer, t validation.QualityThresholds) (*kernelOutputs, error) {
	out := &kernelOutputs{
		resolution: kernels.Resolution(pb.Width(), pb.Height(), t.MinWidth, t.MinHeight),
		aspect:     kernels.AspectRatio(pb.Width(), pb.Height(), t.ExpectedAspectRatios, t.AspectTolerance),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.perceptual, err = kernels.Perceptual(gctx, pb)
		return err
	})
	g.Go(func() (err error) {
		out.sharpness, err = kernels.Sharpness(gctx, pb)
		return err
	})
	g.Go(func() (err error) {
		out.exposure, err = kernels.Exposure(gctx, pb, kernels.ExposureConfig{
			MaxShadowClip:      t.MaxShadowClip,
			MaxHighlightClip:   t.MaxHighlightClip,
			MinMidtoneCoverage: t.MinMidtoneCoverage,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func buildDetails(out *kernelOutputs, opts models.AnalysisOptions) *models.AnalysisDetails {
	if !opts.IncludeDetailedMetrics && !opts.IncludeHistogram {
		return nil
	}

	d := &models.AnalysisDetails{}
	if opts.IncludeDetailedMetrics {
		d.Exposure = &models.ExposureDetails{
			Bins:              out.exposure.Bins,
			ShadowFraction:    out.exposure.Shadow,
			MidtoneFraction:   out.exposure.Midtone,
			HighlightFraction: out.exposure.Highlight,
			EmptyBins:         out.exposure.EmptyBins,
			MeanLuma:          out.exposure.MeanLuma,
			Overexposed:       out.exposure.Overexposed,
			Underexposed:      out.exposure.Underexposed,
		}
		d.Perceptual = &models.PerceptualDetails{
			Shape:           out.perceptual.Shape,
			Variance:        out.perceptual.Variance,
			PairCorrelation: out.perceptual.PairCorrelation,
			SampledWidth:    out.perceptual.Width,
			SampledHeight:   out.perceptual.Height,
		}
		d.Sharpness = &models.SharpnessDetails{
			LaplacianMean:     out.sharpness.Mean,
			LaplacianVariance: out.sharpness.Variance,
		}
		d.Aspect = &models.AspectDetails{
			NearestRatio: out.aspect.NearestRatio,
			Deviation:    finite(out.aspect.Deviation),
			Recognized:   out.aspect.Recognized,
		}
	}
	if opts.IncludeHistogram {
		d.Histogram = append([]int(nil), out.exposure.Histogram[:]...)
	}
	return d
}

// kernelError maps kernel sentinels onto the taxonomy. Context errors pass
// through for contextError.
func kernelError(err error) error {
	switch {
	case errors.Is(err, kernels.ErrUnsupportedColorSpace):
		return apperrors.NewUnsupportedColorSpaceError("pixel layout is not gray, RGB or RGBA", err)
	case errors.Is(err, kernels.ErrEmptyImage):
		return apperrors.NewDecodeError("decoded image has no pixels", err)
	case errors.Is(err, kernels.ErrInsufficientSize):
		return apperrors.NewInsufficientResolutionError("image is too small to measure", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperrors.NewInternalError("metric computation failed", err)
	}
}

func unsupportedFormat(ext string, profile *config.Profile) error {
	return apperrors.NewUnsupportedFormatError(
		fmt.Sprintf("format %q is not supported by profile %s", ext, profile.Name), nil)
}

// finite replaces infinities (no expected ratio to compare against) with -1.
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return -1
	}
	return v
}

func (a *QualityAnalyzer) publish(ctx context.Context, event observer.AnalysisEvent) {
	if a.events != nil {
		a.events.NotifyObservers(ctx, event)
	}
}
