package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sujet-portal-api/internal/observability"
)

// View names used for cache keys, metrics and stale view events.
const (
	ViewAssignment = "assignment"
	ViewExercises  = "exercises"
	ViewDashboard  = "dashboard"
	ViewRanking    = "ranking"
)

const rankingCacheKey = "ranking:students"

func assignmentViewKey(assignmentID, studentID uint) string {
	return fmt.Sprintf("views:assignment:%d:student:%d", assignmentID, studentID)
}

func exercisesViewKey(studentID uint) string {
	return fmt.Sprintf("views:exercises:student:%d", studentID)
}

func dashboardViewKey(studentID uint) string {
	return fmt.Sprintf("views:dashboard:student:%d", studentID)
}

// viewCache stores JSON encoded views in Redis. A nil client disables it.
type viewCache struct {
	client *redis.Client
	ttl    time.Duration
	view   string
	logger zerolog.Logger
}

func (c viewCache) get(ctx context.Context, key string, dest interface{}) bool {
	if c.client == nil {
		return false
	}

	cached, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("failed to read view cache")
		}
		observability.CacheLookups().WithLabelValues(c.view, "miss").Inc()
		return false
	}

	if err := json.Unmarshal(cached, dest); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding malformed cache entry")
		observability.CacheLookups().WithLabelValues(c.view, "miss").Inc()
		return false
	}

	observability.CacheLookups().WithLabelValues(c.view, "hit").Inc()
	return true
}

func (c viewCache) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c.client == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to encode view cache")
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to store view cache")
	}
}
