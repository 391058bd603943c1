package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache TTLs. Reputation is short-lived because admission reads it on every
// request and bans must propagate quickly.
const (
	ReputationCacheTTL = time.Minute
	ReportCacheTTL     = 10 * time.Minute
)

// CacheService provides a Redis cache-aside layer for hot reputation reads
// and published reports. If Redis is unconfigured or unreachable, all
// operations become no-ops.
type CacheService struct {
	rdb *redis.Client
}

// NewCacheService creates a new CacheService. An empty URL or a failed
// connection disables caching rather than failing startup.
func NewCacheService(redisURL string) *CacheService {
	if redisURL == "" {
		log.Info().Msg("redis: no URL configured, caching disabled")
		return &CacheService{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return &CacheService{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		return &CacheService{}
	}

	log.Info().Msg("redis: connected, caching enabled")
	return &CacheService{rdb: rdb}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	return c.rdb
}

// GetReputation retrieves a cached reputation snapshot. Returns nil when
// not cached or caching is disabled.
func (c *CacheService) GetReputation(ctx context.Context, userID string) ([]byte, error) {
	if c.rdb == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, reputationKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// SetReputation stores a reputation snapshot.
func (c *CacheService) SetReputation(ctx context.Context, userID string, data interface{}) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, reputationKey(userID), b, ReputationCacheTTL).Err()
}

// InvalidateReputation drops the cached snapshot after any reputation
// mutation so bans and deltas are visible on the next read.
func (c *CacheService) InvalidateReputation(ctx context.Context, userID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, reputationKey(userID)).Err()
}

// GetReport retrieves a cached public report.
func (c *CacheService) GetReport(ctx context.Context, submissionID string) ([]byte, error) {
	if c.rdb == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, reportKey(submissionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

// SetReport stores a public report.
func (c *CacheService) SetReport(ctx context.Context, submissionID string, data interface{}) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, reportKey(submissionID), b, ReportCacheTTL).Err()
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func reputationKey(userID string) string {
	return fmt.Sprintf("reputation:%s", userID)
}

func reportKey(submissionID string) string {
	return fmt.Sprintf("report:%s", submissionID)
}
