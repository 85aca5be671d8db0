package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anime-shed/image-quality-engine/internal/config"
	"github.com/anime-shed/image-quality-engine/internal/container"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/internal/queue"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func (o *options) run(cmd *cobra.Command) error {
	if err := o.validate(); err != nil {
		return err
	}

	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Configure(cfg.LogLevel, cfg.Debug)
	if o.mode != ModeAPI {
		// stdout carries results; keep logs off it.
		logger.Logger.SetOutput(cmd.ErrOrStderr())
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	c, err := container.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer c.Shutdown()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch o.mode {
	case ModeAPI:
		return serveAPI(ctx, c, cfg)
	case ModeQueue:
		return runQueue(ctx, c, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
	default:
		return o.runStandalone(ctx, c, cmd.OutOrStdout())
	}
}

// serveAPI runs the HTTP server until ctx is cancelled, then drains it.
func serveAPI(ctx context.Context, c *container.Container, cfg *config.Config) error {
	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"timeout": cfg.RequestTimeout,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}

// runQueue handles deliveries until the input ends. A signal stops it
// between deliveries.
func runQueue(ctx context.Context, c *container.Container, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	in := stdin
	if cfg.QueueFile != "" {
		f, err := os.Open(cfg.QueueFile)
		if err != nil {
			return fmt.Errorf("failed to open queue file: %w", err)
		}
		defer f.Close()
		in = f
	}

	logger.WithField("source", queueSource(cfg.QueueFile)).Info("Queue worker started")

	err := queue.NewWorker(c.Adapter(), in, stdout).Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Queue worker stopped")
		return nil
	}
	return err
}

func queueSource(path string) string {
	if path == "" {
		return "stdin"
	}
	return path
}

func (o *options) analysisOptions() models.AnalysisOptions {
	opts := models.DefaultAnalysisOptions()
	opts.IncludeDetailedMetrics = o.details
	opts.IncludeHistogram = o.histogram
	return opts
}

// runStandalone analyzes --image or --batch once. A failed single image is
// an error; failed batch items are only reported.
func (o *options) runStandalone(ctx context.Context, c *container.Container, out io.Writer) error {
	svc := c.Service()

	if o.image != "" {
		result, err := svc.AnalyzeImage(ctx, o.image, "", o.analysisOptions())
		if err != nil {
			return fmt.Errorf("analysis of %s failed: %w", o.image, err)
		}
		return writeResult(out, o.output, result)
	}

	sources, err := readBatchFile(o.batch)
	if err != nil {
		return err
	}
	outcome, err := svc.AnalyzeBatch(ctx, sources, "", 0, o.analysisOptions())
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	return writeBatch(out, o.output, outcome)
}

// readBatchFile lists the references in path, skipping blank lines and
// lines starting with #.
func readBatchFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("batch file %s lists no images", path)
	}
	return sources, nil
}
