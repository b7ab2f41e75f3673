// Package cache provides an optional Redis-backed cache for enrichment
// query responses. All cache failures degrade to misses; the store remains
// the source of truth.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/compath-server/internal/domain"
)

// QueryCache caches gene-set query results in Redis behind a circuit
// breaker. When Redis misbehaves the breaker opens and lookups become
// immediate misses instead of slow failures.
type QueryCache struct {
	redis   *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// New creates a query cache and verifies the Redis connection.
func New(cfg domain.CacheConfig, logger *logrus.Logger) (*QueryCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "query-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cache circuit breaker state changed")
		},
	})

	return &QueryCache{
		redis:   client,
		ttl:     cfg.DefaultTTL,
		breaker: breaker,
		log:     logger,
	}, nil
}

// geneSetKey derives a stable cache key from a symbol set: order and
// duplicates in the input must not change the key.
func geneSetKey(symbols []string) string {
	set := domain.NewGeneSet(symbols...)
	sorted := set.Symbols()
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return fmt.Sprintf("compath:geneset:%x", sum)
}

// GetGeneSetQuery returns a cached enrichment result, or ok=false on miss
// or any cache failure.
func (c *QueryCache) GetGeneSetQuery(ctx context.Context, symbols []string) (map[string]*domain.PathwayEnrichment, bool) {
	payload, err := c.breaker.Execute(func() (interface{}, error) {
		return c.redis.Get(ctx, geneSetKey(symbols)).Bytes()
	})
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("Cache lookup failed")
		}
		return nil, false
	}

	var results map[string]*domain.PathwayEnrichment
	if err := json.Unmarshal(payload.([]byte), &results); err != nil {
		c.log.WithError(err).Warn("Discarding malformed cache entry")
		return nil, false
	}
	return results, true
}

// SetGeneSetQuery stores an enrichment result. Failures are logged, not
// surfaced.
func (c *QueryCache) SetGeneSetQuery(ctx context.Context, symbols []string, results map[string]*domain.PathwayEnrichment) {
	payload, err := json.Marshal(results)
	if err != nil {
		c.log.WithError(err).Warn("Failed to encode cache entry")
		return
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, geneSetKey(symbols), payload, c.ttl).Err()
	})
	if err != nil {
		c.log.WithError(err).Debug("Cache store failed")
	}
}

// Close releases the Redis client.
func (c *QueryCache) Close() error {
	return c.redis.Close()
}
