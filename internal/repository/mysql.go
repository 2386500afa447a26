package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"advert-service/internal/domain"
	"advert-service/internal/infrastructure/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type mysqlAdvertRepository struct {
	db      *sql.DB
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
}

func NewMysqlAdvertRepository(db *sql.DB, metrics *metrics.RepositoryMetrics) AdvertRepository {
	tracer := otel.Tracer("advert-service/repository")
	return &mysqlAdvertRepository{
		db:      db,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (r *mysqlAdvertRepository) Put(ctx context.Context, advert *domain.Advert) error {
	ctx, span := r.tracer.Start(ctx, "Repository Put")
	defer span.End()

	span.SetAttributes(
		attribute.String("advert.id", advert.ID),
		attribute.String("advert.status", string(advert.Status)),
	)

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("Put", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("Put", status).Observe(duration)
	}()

	query := `
		INSERT INTO adverts (id, creation_date_time, status, title, description, price)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			creation_date_time = VALUES(creation_date_time),
			status = VALUES(status),
			title = VALUES(title),
			description = VALUES(description),
			price = VALUES(price)
	`

	_, err := r.db.ExecContext(ctx, query,
		advert.ID, advert.CreationDateTime, string(advert.Status),
		advert.Title, advert.Description, advert.Price)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to put advert: %w", err)
	}

	return nil
}

func (r *mysqlAdvertRepository) Get(ctx context.Context, id string) (*domain.Advert, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Get")
	defer span.End()

	span.SetAttributes(attribute.String("advert.id", id))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("Get", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("Get", status).Observe(duration)
	}()

	query := `
		SELECT id, creation_date_time, status, title, description, price
		FROM adverts
		WHERE id = ?
	`

	var (
		advert       domain.Advert
		advertStatus string
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&advert.ID,
		&advert.CreationDateTime,
		&advertStatus,
		&advert.Title,
		&advert.Description,
		&advert.Price,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			status = "not_found"
			return nil, ErrNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get advert: %w", err)
	}

	advert.Status = domain.AdvertStatus(advertStatus)
	return &advert, nil
}

func (r *mysqlAdvertRepository) GetConsistent(ctx context.Context, id string) (*domain.Advert, error) {
	return r.Get(ctx, id)
}

func (r *mysqlAdvertRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "Repository Delete")
	defer span.End()

	span.SetAttributes(attribute.String("advert.id", id))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("Delete", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("Delete", status).Observe(duration)
	}()

	// zero affected rows is fine, deletes are idempotent
	if _, err := r.db.ExecContext(ctx, "DELETE FROM adverts WHERE id = ?", id); err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to delete advert: %w", err)
	}

	return nil
}

func (r *mysqlAdvertRepository) CheckHealth(ctx context.Context) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "Repository CheckHealth")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("CheckHealth", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("CheckHealth", status).Observe(duration)
	}()

	if err := r.db.PingContext(ctx); err != nil {
		status = "error"
		span.RecordError(err)
		return false, fmt.Errorf("failed to ping database: %w", err)
	}

	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM adverts LIMIT 1").Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
		span.RecordError(err)
		return false, fmt.Errorf("failed to query adverts table: %w", err)
	}

	return true, nil
}
