package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

const redisKeyPrefix = "fuelscraper:lock:"

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared between instances through Redis.
// Locks expire after ttl so a crashed instance cannot block a fuel type forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis connects to Redis and returns a Locker.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "lock").Str("addr", addr).Logger(),
	}, nil
}

// Key returns the Redis key guarding a fuel type.
func Key(fuelType models.FuelType) string {
	return redisKeyPrefix + string(fuelType)
}

// TryLock sets the lock key if it does not exist yet.
func (r *Redis) TryLock(ctx context.Context, fuelType models.FuelType) (func(), bool, error) {
	key := Key(fuelType)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		// The run context may already be cancelled at this point.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Error().Err(err).Str("key", key).Msg("failed to release lock")
			return
		}
		if n == 0 {
			r.logger.Warn().Str("key", key).Msg("lock expired before release")
		}
	}
	return unlock, true, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
