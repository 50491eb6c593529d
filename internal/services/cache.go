package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
)

// ErrCacheMiss is returned when a key is absent or the cache is disabled.
var ErrCacheMiss = errors.New("cache miss")

// CacheService stores formatted batches in redis behind a circuit breaker so
// a redis outage degrades to recomputing instead of failing requests.
// A nil *CacheService is a valid disabled cache.
type CacheService struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
}

func NewCacheService(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *CacheService {
	if client == nil {
		return nil
	}
	settings := gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}
	return &CacheService{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		ttl:     ttl,
		logger:  logger,
	}
}

// SetBatch stores a batch under key for the configured TTL.
func (c *CacheService) SetBatch(ctx context.Context, key string, view *optimizer.BatchView) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set batch in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":     key,
		"expiration":    c.ttl,
		"lineups_count": len(view.Lineups),
	}).Debug("Cached optimization batch")
	return nil
}

// GetBatch returns the cached batch for key, or ErrCacheMiss.
func (c *CacheService) GetBatch(ctx context.Context, key string) (*optimizer.BatchView, error) {
	if c == nil {
		return nil, ErrCacheMiss
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get batch from cache: %w", err)
	}

	var view optimizer.BatchView
	if err := json.Unmarshal(out.([]byte), &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch: %w", err)
	}
	return &view, nil
}

// Ping reports whether redis answers. A disabled cache is healthy.
func (c *CacheService) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// State is the breaker state, "disabled" for a nil cache.
func (c *CacheService) State() string {
	if c == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// OptimizationCacheKey keys a batch by pool snapshot and request hash.
func OptimizationCacheKey(poolID, requestHash string) string {
	return fmt.Sprintf("optimization:%s:%s", poolID, requestHash)
}
