package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rail-reservation/internal/model"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("availability not cached")

type AvailabilityCache interface {
	// Put stores a snapshot unless a newer version is already cached.
	Put(ctx context.Context, key model.LedgerKey, row *model.LedgerRow) (bool, error)
	Get(ctx context.Context, key model.LedgerKey) (model.Availability, error)
	Invalidate(ctx context.Context, key model.LedgerKey) error
}

type RedisAvailabilityCacheImpl struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) AvailabilityCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisAvailabilityCacheImpl{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisAvailabilityCacheImpl) cacheKey(key model.LedgerKey) string {
	return fmt.Sprintf("availability:%s", key.String())
}

// putScript writes the snapshot only when ARGV[1] is newer than the cached
// version, so a slow writer cannot roll the display back.
var putScript = redis.NewScript(`
	local key = KEYS[1]
	local version = tonumber(ARGV[1])

	local cached = redis.call('HGET', key, 'version')
	if cached and tonumber(cached) >= version then
		return 0
	end

	redis.call('HSET', key,
		'version', version,
		'total', ARGV[2],
		'available', ARGV[3],
		'waiting', ARGV[4])
	redis.call('PEXPIRE', key, ARGV[5])
	return 1
`)

func (c *RedisAvailabilityCacheImpl) Put(ctx context.Context, key model.LedgerKey, row *model.LedgerRow) (bool, error) {
	res, err := putScript.Run(ctx, c.client, []string{c.cacheKey(key)},
		row.Version, row.TotalSeats, row.AvailableSeats, row.WaitingCount, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (c *RedisAvailabilityCacheImpl) Get(ctx context.Context, key model.LedgerKey) (model.Availability, error) {
	result, err := c.client.HGetAll(ctx, c.cacheKey(key)).Result()
	if err != nil {
		return model.Availability{}, err
	}
	if len(result) == 0 {
		return model.Availability{}, ErrCacheMiss
	}

	fields := make(map[string]int64, 4)
	for _, name := range []string{"version", "total", "available", "waiting"} {
		v, err := strconv.ParseInt(result[name], 10, 64)
		if err != nil {
			return model.Availability{}, fmt.Errorf("invalid %s: %v", name, err)
		}
		fields[name] = v
	}

	return model.Availability{
		TrainID:     key.TrainID,
		JourneyDate: key.JourneyDate.Format(model.DateLayout),
		Quota:       key.Quota,
		CoachClass:  key.CoachClass,
		Total:       int(fields["total"]),
		Available:   int(fields["available"]),
		Waiting:     int(fields["waiting"]),
		Version:     fields["version"],
	}, nil
}

func (c *RedisAvailabilityCacheImpl) Invalidate(ctx context.Context, key model.LedgerKey) error {
	return c.client.Del(ctx, c.cacheKey(key)).Err()
}
