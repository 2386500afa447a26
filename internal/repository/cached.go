package repository

import (
	"context"
	"errors"

	"advert-service/internal/domain"
	"advert-service/internal/infrastructure/cache"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// cachedAdvertRepository keeps a read-through copy of adverts in Redis.
//
// Every write fences the advert's key before and after touching the store,
// and refills only land on an empty key. A read that fetched a record before
// a write therefore cannot put that record back while the fence is up.
// Cache failures are recorded on the span and never fail the call.
type cachedAdvertRepository struct {
	next   AdvertRepository
	cache  cache.AdvertCache
	tracer trace.Tracer
}

func NewCachedAdvertRepository(next AdvertRepository, c cache.AdvertCache) AdvertRepository {
	return &cachedAdvertRepository{
		next:   next,
		cache:  c,
		tracer: otel.Tracer("advert-service/repository"),
	}
}

func (r *cachedAdvertRepository) Put(ctx context.Context, advert *domain.Advert) error {
	r.fence(ctx, advert.ID)
	err := r.next.Put(ctx, advert)
	r.fence(ctx, advert.ID)
	return err
}

func (r *cachedAdvertRepository) Get(ctx context.Context, id string) (*domain.Advert, error) {
	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Get")
	cached, err := r.cache.Get(cacheSpanCtx, id)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		cacheSpan.RecordError(err)
	}
	cacheSpan.End()

	if err == nil {
		return cached, nil
	}

	advert, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cacheSpanCtx, cacheSpan = r.tracer.Start(ctx, "Redis SetNX")
	if err := r.cache.Fill(cacheSpanCtx, advert); err != nil {
		cacheSpan.RecordError(err)
	}
	cacheSpan.End()

	return advert, nil
}

func (r *cachedAdvertRepository) GetConsistent(ctx context.Context, id string) (*domain.Advert, error) {
	return r.next.GetConsistent(ctx, id)
}

func (r *cachedAdvertRepository) Delete(ctx context.Context, id string) error {
	r.fence(ctx, id)
	err := r.next.Delete(ctx, id)
	r.fence(ctx, id)
	return err
}

func (r *cachedAdvertRepository) CheckHealth(ctx context.Context) (bool, error) {
	return r.next.CheckHealth(ctx)
}

func (r *cachedAdvertRepository) fence(ctx context.Context, id string) {
	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Fence")
	defer cacheSpan.End()

	if err := r.cache.Fence(cacheSpanCtx, id); err != nil {
		cacheSpan.RecordError(err)
	}
}
