// Package cache keeps list query results until a change to one of the tables
// they read invalidates them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/stats"
	"github.com/sirupsen/logrus"
)

const (
	metricHits          = "cache_hits"
	metricMisses        = "cache_misses"
	metricInvalidations = "cache_invalidations"
)

type ListCache struct {
	backend Backend
	ttl     time.Duration
	log     *logrus.Logger
	stats   stats.StatsProvider

	// mu orders generation checks with stores, so a load that raced an
	// invalidation of any of its tags is never written.
	mu   sync.Mutex
	gens map[string]uint64
}

func New(backend Backend, ttl time.Duration, logger *logrus.Logger, st stats.StatsProvider) *ListCache {
	st.RegisterMetric(metricHits)
	st.RegisterMetric(metricMisses)
	st.RegisterMetric(metricInvalidations)

	return &ListCache{
		backend: backend,
		ttl:     ttl,
		log:     logger,
		stats:   st,
		gens:    make(map[string]uint64),
	}
}

func (c *ListCache) generation(tags []string) uint64 {
	var sum uint64
	for _, tag := range tags {
		sum += c.gens[tag]
	}
	return sum
}

// Fetch returns the cached value for key or calls load and caches its result
// under tags.
func Fetch[T any](ctx context.Context, c *ListCache, key string, tags []string, load func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok, err := c.backend.Get(ctx, key); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache read failed")
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.stats.Incr(metricHits)
			return v, nil
		}
		c.log.WithField("key", key).Warn("discarding undecodable cache entry")
	}
	c.stats.Incr(metricMisses)

	c.mu.Lock()
	gen := c.generation(tags)
	c.mu.Unlock()

	v, err := load(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encode cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation(tags) != gen {
		c.log.WithField("key", key).Debug("load raced an invalidation, not caching")
		return v, nil
	}
	if err := c.backend.Set(ctx, key, raw, c.ttl, tags); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}

	return v, nil
}

// Invalidate drops every entry tagged with tag.
func (c *ListCache) Invalidate(ctx context.Context, tag string) error {
	c.mu.Lock()
	c.gens[tag]++
	c.mu.Unlock()

	c.stats.Incr(metricInvalidations)
	if err := c.backend.Invalidate(ctx, tag); err != nil {
		return fmt.Errorf("invalidate %s: %w", tag, err)
	}
	return nil
}

// Watch invalidates a tag whenever the hub reports a change on the topic of
// the same name. It returns once every subscription is in place; they end
// with ctx.
func (c *ListCache) Watch(ctx context.Context, hub *feed.Hub, tags ...string) error {
	for _, tag := range tags {
		sub, err := hub.Subscribe(ctx, tag)
		if err != nil {
			return fmt.Errorf("watch %s: %w", tag, err)
		}

		go func() {
			for change := range sub.Changes() {
				if err := c.Invalidate(context.Background(), change.Topic); err != nil {
					c.log.WithError(err).WithField("topic", change.Topic).Error("cache invalidation failed")
				}
			}
		}()
	}
	return nil
}

func (c *ListCache) Close() error {
	return c.backend.Close()
}
