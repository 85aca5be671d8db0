package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// ResultCache holds finished results keyed by content, profile and options.
// Entries are written once and expire after ttl. Concurrent misses on the
// same key run the computation once.
type ResultCache struct {
	mu      sync.Mutex
	entries *lru.Cache
	ttl     time.Duration
	group   singleflight.Group
	now     func() time.Time
}

type cacheEntry struct {
	result  *models.AnalysisResult
	expires time.Time
}

// NewResultCache creates a cache holding at most size entries. ttl <= 0
// keeps entries until they are evicted.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = 1024
	}
	return &ResultCache{
		entries: lru.New(size),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Fingerprint is the content hash used in cache keys and results.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// CacheKey combines everything that can change a result for the same bytes.
func CacheKey(fingerprint, profile string, opts models.AnalysisOptions) string {
	return fmt.Sprintf("%s|%s|d=%t,h=%t,r=%t", fingerprint, profile,
		opts.IncludeDetailedMetrics, opts.IncludeHistogram, opts.IncludeRecommendations)
}

// Get returns a copy of a live entry marked as cached.
func (c *ResultCache) Get(key string) (*models.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if c.ttl > 0 && c.now().After(entry.expires) {
		c.entries.Remove(key)
		return nil, false
	}
	hit := entry.result.Copy()
	hit.Cached = true
	return hit, true
}

func (c *ResultCache) Add(key string, result *models.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, cacheEntry{result: result, expires: c.now().Add(c.ttl)})
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Do returns the cached result for key or runs compute, storing a
// successful result. Concurrent misses share one computation. It runs on a
// context detached from every caller and bounded by timeout, so one caller
// giving up never fails the others; each caller waits only as long as its
// own ctx allows. A shared computation that ran out of time is retried by
// callers that still have time. Errors are never cached, and every caller
// gets its own copy of the result.
func (c *ResultCache) Do(ctx context.Context, key string, timeout time.Duration, compute func(context.Context) (*models.AnalysisResult, error)) (*models.AnalysisResult, error) {
	for {
		if hit, ok := c.Get(key); ok {
			return hit, nil
		}

		ch := c.group.DoChan(key, func() (interface{}, error) {
			if hit, ok := c.Get(key); ok {
				return hit, nil
			}
			flightCtx, cancel := detach(ctx, timeout)
			defer cancel()

			res, err := compute(flightCtx)
			if err != nil {
				return nil, err
			}
			c.Add(key, res)
			return res, nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			if r.Err != nil {
				if isContextError(r.Err) && ctx.Err() == nil {
					continue
				}
				return nil, r.Err
			}
			return r.Val.(*models.AnalysisResult).Copy(), nil
		}
	}
}

func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, timeout)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
