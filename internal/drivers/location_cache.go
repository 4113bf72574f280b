package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/quickride/quickride/pkg/common"
	"github.com/quickride/quickride/pkg/redis"
)

// RedisLocationCache keeps each driver's last position in Redis with a TTL,
// so a driver that stops reporting drops out of the fast path automatically.
type RedisLocationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocationCache creates a Redis-backed location cache.
func NewRedisLocationCache(client *redis.Client, ttl time.Duration) *RedisLocationCache {
	return &RedisLocationCache{client: client, ttl: ttl}
}

func locationKey(driverID uuid.UUID) string {
	return "driver:location:" + driverID.String()
}

// SetLocation stores the driver's position.
func (c *RedisLocationCache) SetLocation(ctx context.Context, driverID uuid.UUID, loc Location) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to marshal location: %w", err)
	}

	if err := c.client.Set(ctx, locationKey(driverID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache driver location: %w", err)
	}
	return nil
}

// GetLocation returns the driver's cached position, or not-found when the
// entry is absent or expired.
func (c *RedisLocationCache) GetLocation(ctx context.Context, driverID uuid.UUID) (*Location, error) {
	payload, err := c.client.Get(ctx, locationKey(driverID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, common.NewNotFoundError("driver location unknown")
		}
		return nil, fmt.Errorf("failed to read driver location: %w", err)
	}

	var loc Location
	if err := json.Unmarshal(payload, &loc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal location: %w", err)
	}
	return &loc, nil
}
