package container

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/anime-shed/image-quality-engine/internal/analyzer"
	"github.com/anime-shed/image-quality-engine/internal/config"
	"github.com/anime-shed/image-quality-engine/internal/factory"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/internal/observer"
	"github.com/anime-shed/image-quality-engine/internal/repository"
	"github.com/anime-shed/image-quality-engine/internal/scheduler"
	"github.com/anime-shed/image-quality-engine/internal/service"
	"github.com/anime-shed/image-quality-engine/internal/task"
	"github.com/anime-shed/image-quality-engine/internal/transport"
	pkgconfig "github.com/anime-shed/image-quality-engine/pkg/config"
)

// Version is reported by health checks. Overridden at link time.
var Version = "dev"

// Container holds all application dependencies
type Container struct {
	config               *config.Config
	registry             *pkgconfig.Registry
	metrics              *prometheus.Registry
	events               *observer.EventPublisher
	imageRepository      repository.ImageRepository
	imageAnalyzer        analyzer.ImageAnalyzer
	imageAnalysisService service.ImageAnalysisService
	health               *task.HealthChecker
	adapter              *task.Adapter
	handler              http.Handler
}

// NewContainer builds the dependency graph for cfg.
func NewContainer(cfg *config.Config) (*Container, error) {
	registry, err := loadRegistry(cfg.ProfilesFile)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultProfile != "" {
		registry = registry.WithPreferred(cfg.DefaultProfile)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promObserver, err := observer.NewPrometheusObserver(metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(promObserver)

	imageRepository, err := factory.NewImageRepository(factory.NewStorageFactory(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to configure image sources: %w", err)
	}

	opts := []analyzer.Option{
		analyzer.WithRepository(imageRepository),
		analyzer.WithEvents(events),
	}
	if cfg.CacheEnabled {
		opts = append(opts, analyzer.WithCache(analyzer.NewResultCache(cfg.CacheSize, cfg.CacheTTL)))
	}
	imageAnalyzer := analyzer.NewQualityAnalyzer(opts...)

	imageAnalysisService := service.NewImageAnalysisService(
		registry,
		imageRepository,
		imageAnalyzer,
		scheduler.NewBatchScheduler(imageAnalyzer, events),
	)
	health := task.NewHealthChecker(Version, registry.Names)
	adapter := task.NewAdapter(imageAnalysisService, health)

	return &Container{
		config:               cfg,
		registry:             registry,
		metrics:              metrics,
		events:               events,
		imageRepository:      imageRepository,
		imageAnalyzer:        imageAnalyzer,
		imageAnalysisService: imageAnalysisService,
		health:               health,
		adapter:              adapter,
		handler:              transport.NewHandler(imageAnalysisService, adapter, health, metrics, cfg),
	}, nil
}

func loadRegistry(path string) (*pkgconfig.Registry, error) {
	if path == "" {
		return pkgconfig.DefaultRegistry(), nil
	}
	registry, err := pkgconfig.LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", path).WithField("profiles", registry.Names()).Info("Loaded profile overrides")
	return registry, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

func (c *Container) Service() service.ImageAnalysisService {
	return c.imageAnalysisService
}

func (c *Container) Adapter() *task.Adapter {
	return c.adapter
}

// Profile resolves name the way every entry point does.
func (c *Container) Profile(name string) *pkgconfig.Profile {
	return c.registry.Select(name)
}

// Shutdown waits for in-flight observer notifications.
func (c *Container) Shutdown() {
	c.events.Wait()
}
