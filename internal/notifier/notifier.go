package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"advert-service/internal/domain"
	"advert-service/internal/infrastructure/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notifier announces a completed confirmation to external subscribers.
// Delivery is at-least-once; consumers must tolerate duplicates.
type Notifier interface {
	PublishConfirmed(ctx context.Context, id, title string) error
}

func encodeConfirmed(id, title string) ([]byte, error) {
	body, err := json.Marshal(domain.AdvertConfirmedMessage{ID: id, Title: title})
	if err != nil {
		return nil, fmt.Errorf("failed to encode confirmation message: %w", err)
	}
	return body, nil
}

type instrumented struct {
	backend string
	metrics *metrics.NotifierMetrics
	tracer  trace.Tracer
}

// publish runs send inside a span and records the outcome.
func (i instrumented) publish(ctx context.Context, id string, send func(ctx context.Context) error) error {
	ctx, span := i.tracer.Start(ctx, "Notifier PublishConfirmed")
	defer span.End()

	span.SetAttributes(
		attribute.String("advert.id", id),
		attribute.String("notifier.backend", i.backend),
	)

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		i.metrics.PublishCount.WithLabelValues(i.backend, status).Inc()
		i.metrics.PublishDuration.WithLabelValues(i.backend, status).Observe(duration)
	}()

	if err := send(ctx); err != nil {
		status = "error"
		span.RecordError(err)
		return err
	}
	return nil
}
