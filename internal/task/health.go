package task

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthChecker reports process and host state. It never touches the
// analysis pipeline.
type HealthChecker struct {
	version  string
	started  time.Time
	profiles func() []string
	memory   func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

func NewHealthChecker(version string, profiles func() []string) *HealthChecker {
	return &HealthChecker{
		version:  version,
		started:  time.Now(),
		profiles: profiles,
		memory:   mem.VirtualMemoryWithContext,
	}
}

func (h *HealthChecker) Report(ctx context.Context) *models.HealthReport {
	report := &models.HealthReport{
		Status:        StatusHealthy,
		Version:       h.version,
		UptimeSeconds: time.Since(h.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}
	if h.profiles != nil {
		report.Profiles = h.profiles()
	}

	vm, err := h.memory(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to read host memory")
		report.Status = StatusDegraded
		return report
	}
	report.MemoryTotal = vm.Total
	report.MemoryUsed = vm.Used
	report.MemoryUsedPercent = vm.UsedPercent
	return report
}
