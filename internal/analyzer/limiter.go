package analyzer

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/anime-shed/image-quality-engine/pkg/config"
)

// Limiter caps the analyses running at once for each profile. One limiter
// is shared by every caller of an analyzer, so single requests, batches and
// tasks all draw from the same max_concurrent_analyses slots.
type Limiter struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewLimiter() *Limiter {
	return &Limiter{sems: make(map[string]*semaphore.Weighted)}
}

// Acquire blocks until profile has a free slot or ctx ends. The returned
// func releases the slot.
func (l *Limiter) Acquire(ctx context.Context, profile *config.Profile) (func(), error) {
	sem := l.semaphore(profile)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

func (l *Limiter) semaphore(profile *config.Profile) *semaphore.Weighted {
	size := int64(max(1, profile.MaxConcurrentAnalyses))
	key := fmt.Sprintf("%s/%d", profile.Name, size)

	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(size)
		l.sems[key] = sem
	}
	return sem
}
