package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"advert-service/internal/domain"

	"github.com/go-redis/redis/v8"
)

// ErrMiss is returned by Get when the advert is not cached or is fenced.
var ErrMiss = errors.New("cache miss")

// fenceMarker occupies an advert's key for a short while after every write,
// so a read that started before the write cannot refill the old record.
const fenceMarker = "fenced"

type AdvertCache interface {
	Get(ctx context.Context, id string) (*domain.Advert, error)
	// Fill caches advert only if its key is empty; a fenced key is kept.
	Fill(ctx context.Context, advert *domain.Advert) error
	// Fence replaces whatever is cached for id with the fence marker.
	Fence(ctx context.Context, id string) error
}

type RedisCache struct {
	client   *redis.Client
	ttl      time.Duration
	fenceTTL time.Duration
}

func NewRedisCache(client *redis.Client, ttl, fenceTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   client,
		ttl:      ttl,
		fenceTTL: fenceTTL,
	}
}

func advertKey(id string) string {
	return fmt.Sprintf("advert:%s", id)
}

func (r *RedisCache) Get(ctx context.Context, id string) (*domain.Advert, error) {
	raw, err := r.client.Get(ctx, advertKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	if string(raw) == fenceMarker {
		return nil, ErrMiss
	}

	var advert domain.Advert
	if err := json.Unmarshal(raw, &advert); err != nil {
		return nil, fmt.Errorf("failed to decode cached advert: %w", err)
	}
	return &advert, nil
}

func (r *RedisCache) Fill(ctx context.Context, advert *domain.Advert) error {
	raw, err := json.Marshal(advert)
	if err != nil {
		return err
	}
	return r.client.SetNX(ctx, advertKey(advert.ID), raw, r.ttl).Err()
}

func (r *RedisCache) Fence(ctx context.Context, id string) error {
	return r.client.Set(ctx, advertKey(id), fenceMarker, r.fenceTTL).Err()
}
