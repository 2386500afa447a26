package repository

import (
	"context"
	"sync"

	"advert-service/internal/domain"
)

// memoryAdvertRepository backs local development and tests; nothing
// survives a restart. It copies records on
// the way in and out so callers never share a pointer with the store.
type memoryAdvertRepository struct {
	mu      sync.RWMutex
	adverts map[string]domain.Advert
}

func NewMemoryAdvertRepository() AdvertRepository {
	return &memoryAdvertRepository{adverts: make(map[string]domain.Advert)}
}

func (r *memoryAdvertRepository) Put(ctx context.Context, advert *domain.Advert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adverts[advert.ID] = *advert
	return nil
}

func (r *memoryAdvertRepository) Get(ctx context.Context, id string) (*domain.Advert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	advert, ok := r.adverts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &advert, nil
}

func (r *memoryAdvertRepository) GetConsistent(ctx context.Context, id string) (*domain.Advert, error) {
	return r.Get(ctx, id)
}

func (r *memoryAdvertRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adverts, id)
	return nil
}

func (r *memoryAdvertRepository) CheckHealth(ctx context.Context) (bool, error) {
	return ctx.Err() == nil, nil
}
