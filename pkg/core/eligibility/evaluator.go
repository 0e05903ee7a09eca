package eligibility

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/creator-selection/pkg/core/model"
)

// DefaultWorkers bounds concurrent support-status lookups when no limit is configured
const DefaultWorkers = 8

// SupportStatusFeed supplies the support plans currently active for a user in a series
type SupportStatusFeed interface {
	ActivePlans(ctx context.Context, seriesID string, userID string) ([]string, error)
}

// RefreshableFeed is a feed that snapshots its facts and can reload them.
// A forced evaluation refreshes it before any lookup.
type RefreshableFeed interface {
	SupportStatusFeed
	Refresh(ctx context.Context) error
}

type cacheKey struct {
	candidateID     string
	configurationID string
	version         int
}

// Cache stores eligibility results per (candidate, configuration version).
// A configuration edit bumps the version, so stale results are never looked up again.
type Cache struct {
	mu      sync.RWMutex
	results map[cacheKey]model.EligibilityResult
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{results: make(map[cacheKey]model.EligibilityResult)}
}

func (c *Cache) get(key cacheKey) (model.EligibilityResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[key]
	return result, ok
}

func (c *Cache) put(key cacheKey, result model.EligibilityResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
}

// Len returns the number of cached results
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// Evaluator resolves eligibility for a candidate pool, fetching support facts in parallel
type Evaluator struct {
	feed    SupportStatusFeed
	cache   *Cache
	workers int
	logger  *zap.Logger
}

// NewEvaluator creates an evaluator. workers <= 0 falls back to DefaultWorkers.
func NewEvaluator(feed SupportStatusFeed, cache *Cache, workers int, logger *zap.Logger) *Evaluator {
	if cache == nil {
		cache = NewCache()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Evaluator{
		feed:    feed,
		cache:   cache,
		workers: workers,
		logger:  logger,
	}
}

// Evaluate resolves a single candidate. When force is set the cache is bypassed and refreshed.
func (e *Evaluator) Evaluate(ctx context.Context, seriesID string, cfg model.EligibilityConfiguration, candidate model.Candidate, force bool) (model.EligibilityResult, error) {
	key := cacheKey{
		candidateID:     candidate.ID,
		configurationID: cfg.ID,
		version:         cfg.Version,
	}

	if !force {
		if cached, ok := e.cache.get(key); ok {
			return cached, nil
		}
	}

	plans, err := e.feed.ActivePlans(ctx, seriesID, candidate.UserID)
	if err != nil {
		return model.EligibilityResult{}, fmt.Errorf("failed to fetch support status for user %s: %w", candidate.UserID, err)
	}

	result := Resolve(plans, cfg)
	e.cache.put(key, result)

	return result, nil
}

// EvaluateAll resolves every candidate and returns results keyed by candidate ID.
// Lookups run concurrently up to the worker limit; each goroutine only writes its own slot.
func (e *Evaluator) EvaluateAll(ctx context.Context, seriesID string, cfg model.EligibilityConfiguration, candidates []model.Candidate, force bool) (map[string]model.EligibilityResult, error) {
	if refreshable, ok := e.feed.(RefreshableFeed); ok && force {
		if err := refreshable.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to refresh support status: %w", err)
		}
	}

	results := make([]model.EligibilityResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, candidate := range candidates {
		g.Go(func() error {
			result, err := e.Evaluate(gctx, seriesID, cfg, candidate, force)
			if err != nil {
				return fmt.Errorf("candidate %s: %w", candidate.ID, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]model.EligibilityResult, len(candidates))
	eligibleCount := 0
	for i, candidate := range candidates {
		byID[candidate.ID] = results[i]
		if results[i].IsEligible {
			eligibleCount++
		}
	}

	e.logger.Debug("Evaluated eligibility",
		zap.String("series_id", seriesID),
		zap.Int("configuration_version", cfg.Version),
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", eligibleCount),
		zap.Bool("forced", force))

	return byID, nil
}
