package cache

import (
	"context"
	"errors"
	"time"

	"SampleDeck/logger"

	"github.com/go-redis/redis/v8"
)

const (
	sampleKeyPrefix = "sample:raw:"
	opTimeout       = 5 * time.Second
	maxGetAttempts  = 2
)

// SampleCache keeps the raw (still scrambled) bytes of sample files in
// Redis so a restart does not have to download them again.
type SampleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSampleCache wraps client. A zero ttl stores keys without expiry.
func NewSampleCache(client *redis.Client, ttl time.Duration) *SampleCache {
	return &SampleCache{client: client, ttl: ttl}
}

func sampleKey(uuid string) string {
	return sampleKeyPrefix + uuid
}

// Get returns the cached bytes for uuid, or nil on a miss. Redis failures
// are retried once and then reported as a miss so callers fall through to
// the next tier.
func (c *SampleCache) Get(ctx context.Context, uuid string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	retryDelay := 100 * time.Millisecond
	for attempt := 1; attempt <= maxGetAttempts; attempt++ {
		data, err := c.client.Get(ctx, sampleKey(uuid)).Bytes()
		if err == nil {
			logger.Debug("Sample cache hit",
				logger.String("uuid", uuid),
				logger.Int("size", len(data)))
			return data, nil
		}
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < maxGetAttempts {
			logger.Warn("Sample cache read failed, retrying",
				logger.String("uuid", uuid),
				logger.Int("attempt", attempt),
				logger.ErrorField(err))
			time.Sleep(retryDelay)
			retryDelay *= 2
			continue
		}
		logger.Error("Sample cache read failed",
			logger.String("uuid", uuid),
			logger.Int("attempts", attempt),
			logger.ErrorField(err))
	}
	return nil, nil
}

// Put stores data for uuid.
func (c *SampleCache) Put(ctx context.Context, uuid string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, sampleKey(uuid), data, c.ttl).Err(); err != nil {
		return err
	}
	logger.Debug("Sample cached",
		logger.String("uuid", uuid),
		logger.Int("size", len(data)),
		logger.Duration("ttl", c.ttl))
	return nil
}

// Delete removes uuid from the cache.
func (c *SampleCache) Delete(ctx context.Context, uuid string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.client.Del(ctx, sampleKey(uuid)).Err()
}

// Info lists cached sample uuids with their remaining TTL in seconds.
// Keys without expiry report -1.
func (c *SampleCache) Info(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info := make(map[string]int64)
	iter := c.client.Scan(ctx, 0, sampleKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := c.client.TTL(ctx, key).Result()
		if err != nil {
			continue
		}
		info[key[len(sampleKeyPrefix):]] = int64(ttl.Seconds())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

// Purge removes every cached sample and returns how many were deleted.
func (c *SampleCache) Purge(ctx context.Context) (int, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return 0, err
	}
	if len(info) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(info))
	for uuid := range info {
		keys = append(keys, sampleKey(uuid))
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Error("Failed to purge sample cache",
			logger.Int("keys", len(keys)),
			logger.ErrorField(err))
		return 0, err
	}
	logger.Info("Sample cache purged", logger.Int("deleted", len(keys)))
	return len(keys), nil
}
