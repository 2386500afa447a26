package repository

import (
	"context"
	"errors"

	"advert-service/internal/domain"
)

var ErrNotFound = errors.New("advert record not found")

// AdvertRepository stores advert records keyed by id. All operations are
// single-key; Put overwrites atomically and Delete is idempotent.
type AdvertRepository interface {
	Put(ctx context.Context, advert *domain.Advert) error
	Get(ctx context.Context, id string) (*domain.Advert, error)
	// GetConsistent reads the authoritative record, skipping any cache.
	// State transitions must be decided on this read.
	GetConsistent(ctx context.Context, id string) (*domain.Advert, error)
	Delete(ctx context.Context, id string) error
	// CheckHealth reports whether the backing table is provisioned and serving.
	CheckHealth(ctx context.Context) (bool, error)
}
