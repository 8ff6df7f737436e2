package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kegstock/kegstock/internal/model"
)

const (
	// BeerTypesKey holds the JSON-encoded, name-ordered beer type list.
	BeerTypesKey = "beer_types:all"

	// BeerTypesGenerationKey counts invalidations of BeerTypesKey. It has
	// no TTL; a missing key reads as generation 0.
	BeerTypesGenerationKey = "beer_types:gen"

	// DefaultTTL bounds staleness if an invalidation is ever missed.
	DefaultTTL = time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")

	// ErrStaleFill is returned by SetBeerTypes when the list was
	// invalidated after the caller read the generation.
	ErrStaleFill = errors.New("beer types changed since generation was read")
)

// fillScript sets KEYS[1] only while KEYS[2] still holds ARGV[1].
var fillScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2]) or '0'
if cur ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// GetBeerTypes returns the cached beer type list.
// Returns ErrCacheMiss if nothing is cached.
func (c *Cache) GetBeerTypes(ctx context.Context) ([]*model.BeerType, error) {
	data, err := c.client.Get(ctx, BeerTypesKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	list, err := decodeBeerTypes(data)
	if err != nil {
		// Corrupt entry: drop it and treat as a miss.
		c.client.Del(ctx, BeerTypesKey)
		return nil, ErrCacheMiss
	}

	return list, nil
}

// Generation returns the current invalidation generation. Read it before
// loading the list that will be passed to SetBeerTypes.
func (c *Cache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, BeerTypesGenerationKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// SetBeerTypes stores the beer type list if no invalidation happened since
// generation was read. Returns ErrStaleFill otherwise.
func (c *Cache) SetBeerTypes(ctx context.Context, generation int64, list []*model.BeerType) error {
	data, err := encodeBeerTypes(list)
	if err != nil {
		return err
	}

	stored, err := fillScript.Run(ctx, c.client,
		[]string{BeerTypesKey, BeerTypesGenerationKey},
		generation, data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to cache beer types: %w", err)
	}
	if stored == 0 {
		return ErrStaleFill
	}

	return nil
}

// InvalidateBeerTypes bumps the generation and removes the cached list in
// one transaction.
func (c *Cache) InvalidateBeerTypes(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, BeerTypesGenerationKey)
		pipe.Del(ctx, BeerTypesKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate beer types: %w", err)
	}
	return nil
}

func encodeBeerTypes(list []*model.BeerType) ([]byte, error) {
	if list == nil {
		list = []*model.BeerType{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("marshal beer types: %w", err)
	}
	return data, nil
}

func decodeBeerTypes(data []byte) ([]*model.BeerType, error) {
	var list []*model.BeerType
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("unmarshal beer types: %w", err)
	}
	if list == nil {
		return nil, errors.New("cached beer types is null")
	}
	return list, nil
}
