package health

import (
	"context"

	"advert-service/internal/repository"
	"advert-service/pkg/logger"
	"advert-service/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Checker reports whether the advert store is reachable. It performs a
// single read-only query with no retries.
type Checker struct {
	repository repository.AdvertRepository
	logger     *logger.Loggers
	tracer     trace.Tracer
}

func NewChecker(repository repository.AdvertRepository, logger *logger.Loggers) *Checker {
	return &Checker{
		repository: repository,
		logger:     logger,
		tracer:     otel.Tracer("advert-service/health"),
	}
}

func (c *Checker) CheckHealth(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "CheckHealth")
	defer span.End()

	healthy, err := c.repository.CheckHealth(ctx)
	if err != nil {
		span.RecordError(err)
		c.logger.ErrorLogger.Error("storage health check failed", utils.Err(err))
		healthy = false
	}

	span.SetAttributes(attribute.Bool("storage.healthy", healthy))
	return healthy
}
