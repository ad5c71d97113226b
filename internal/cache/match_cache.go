package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/meetup-service/internal/domain"
	"github.com/spec-kit/meetup-service/internal/persistence"
)

const matchViewsKeyPrefix = "meetup:matches:"

// MatchViewCache caches resolved match views per user in Redis. Matches are
// immutable, so entries only need invalidation when a new match lands.
type MatchViewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewMatchViewCache builds the cache on top of the shared Redis wrapper.
func NewMatchViewCache(r *persistence.Redis, ttl time.Duration, logger *zap.Logger) *MatchViewCache {
	if r == nil || r.Client == nil || ttl <= 0 {
		return nil
	}
	return &MatchViewCache{client: r.Client, ttl: ttl, logger: logger}
}

// Get returns cached views for the user, reporting a hit or miss. Redis
// failures degrade to a miss.
func (c *MatchViewCache) Get(ctx context.Context, userID int64) ([]domain.MatchView, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, matchViewsKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("match cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return nil, false
	}

	var views []domain.MatchView
	if err := json.Unmarshal(data, &views); err != nil {
		c.logger.Warn("match cache entry corrupt", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	return views, true
}

// Set stores the user's resolved views with the configured TTL.
func (c *MatchViewCache) Set(ctx context.Context, userID int64, views []domain.MatchView) {
	if c == nil {
		return
	}
	data, err := json.Marshal(views)
	if err != nil {
		c.logger.Warn("match cache marshal failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, matchViewsKey(userID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("match cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops cached views for the given users.
func (c *MatchViewCache) Invalidate(ctx context.Context, userIDs ...int64) {
	if c == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, matchViewsKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("match cache invalidation failed", zap.Error(err))
	}
}

func matchViewsKey(userID int64) string {
	return fmt.Sprintf("%s%d", matchViewsKeyPrefix, userID)
}
