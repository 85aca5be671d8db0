package analyzer

import (
	"github.com/google/uuid"

	"github.com/anime-shed/image-quality-engine/internal/observer"
	"github.com/anime-shed/image-quality-engine/internal/repository"
	"github.com/anime-shed/image-quality-engine/pkg/validation"
)

// Option configures a QualityAnalyzer
type Option func(*QualityAnalyzer)

// WithRepository sets where path references are loaded from. The default
// reads local files only.
func WithRepository(repo repository.ImageRepository) Option {
	return func(a *QualityAnalyzer) {
		a.repo = repo
	}
}

// WithDecoder replaces the imaging-based decoder.
func WithDecoder(d Decoder) Option {
	return func(a *QualityAnalyzer) {
		a.decoder = d
	}
}

// WithAggregator replaces the default level scores and overall boundaries.
func WithAggregator(agg *validation.Aggregator) Option {
	return func(a *QualityAnalyzer) {
		a.aggregator = agg
	}
}

// WithCache enables result caching.
func WithCache(c *ResultCache) Option {
	return func(a *QualityAnalyzer) {
		a.cache = c
	}
}

// WithLimiter shares l with other analyzers. By default each analyzer
// owns its own limiter.
func WithLimiter(l *Limiter) Option {
	return func(a *QualityAnalyzer) {
		a.limiter = l
	}
}

// WithEvents publishes lifecycle events to s.
func WithEvents(s observer.Subject) Option {
	return func(a *QualityAnalyzer) {
		a.events = s
	}
}

// WithIDGenerator overrides result ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(a *QualityAnalyzer) {
		a.newID = gen
	}
}

func defaultID() string {
	return uuid.NewString()
}
