package service

import (
	"advert-service/internal/domain"
	"advert-service/internal/infrastructure/metrics"
	"advert-service/internal/notifier"
	"advert-service/internal/repository"
	"advert-service/pkg/logger"
	"advert-service/pkg/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidID      = errors.New("invalid advert ID")
	ErrInvalidStatus  = errors.New("invalid confirmation status")
	ErrAdvertNotFound = errors.New("advert not found")
	ErrStorage        = errors.New("advert storage failure")
	ErrNotification   = errors.New("advert notification failure")
)

type NotificationPolicy string

const (
	// PolicyFatal fails Confirm when the publish fails, even though the
	// store write already happened.
	PolicyFatal NotificationPolicy = "fatal"
	// PolicyBestEffort logs publish failures and lets Confirm succeed.
	PolicyBestEffort NotificationPolicy = "best_effort"
)

func (p NotificationPolicy) Valid() bool {
	return p == PolicyFatal || p == PolicyBestEffort
}

type Options struct {
	// NotifyOnReject publishes the confirmation message for rejected
	// adverts too, using the title read before the delete.
	NotifyOnReject     bool
	NotificationPolicy NotificationPolicy

	// Now and NewID default to time.Now and random UUIDv4 ids.
	Now   func() time.Time
	NewID func() (string, error)
}

func DefaultOptions() Options {
	return Options{
		NotifyOnReject:     true,
		NotificationPolicy: PolicyFatal,
	}
}

type AdvertService interface {
	Add(ctx context.Context, input domain.CreateAdvertInput) (string, error)
	Confirm(ctx context.Context, input domain.ConfirmAdvertInput) error
	GetByID(ctx context.Context, id string) (*domain.Advert, error)
}

type advertService struct {
	repository repository.AdvertRepository
	notifier   notifier.Notifier
	metrics    *metrics.ServiceMetrics
	logger     *logger.Loggers
	tracer     trace.Tracer
	opts       Options
}

func NewAdvertService(repository repository.AdvertRepository, notifier notifier.Notifier, metrics *metrics.ServiceMetrics, logger *logger.Loggers, opts Options) AdvertService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newRandomID
	}
	if !opts.NotificationPolicy.Valid() {
		opts.NotificationPolicy = PolicyFatal
	}

	tracer := otel.Tracer("advert-service/service")
	return &advertService{
		repository: repository,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		tracer:     tracer,
		opts:       opts,
	}
}

func newRandomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *advertService) observe(method string, startTime time.Time, status *string) {
	duration := time.Since(startTime).Seconds()
	s.metrics.MethodCount.WithLabelValues(method, *status).Inc()
	s.metrics.MethodDuration.WithLabelValues(method, *status).Observe(duration)
}

func (s *advertService) Add(ctx context.Context, input domain.CreateAdvertInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "Add")
	defer span.End()

	status := "success"
	defer s.observe("Add", time.Now(), &status)

	id, err := s.opts.NewID()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return "", fmt.Errorf("failed to generate advert id: %w", err)
	}

	advert := &domain.Advert{
		ID:               id,
		CreationDateTime: s.opts.Now().UTC(),
		Status:           domain.StatusPending,
		Title:            input.Title,
		Description:      input.Description,
		Price:            input.Price,
	}

	span.SetAttributes(
		attribute.String("advert.id", advert.ID),
		attribute.String("advert.title", advert.Title),
		attribute.Float64("advert.price", advert.Price),
	)

	if err := s.repository.Put(ctx, advert); err != nil {
		status = "error"
		span.RecordError(err)
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return advert.ID, nil
}

func (s *advertService) Confirm(ctx context.Context, input domain.ConfirmAdvertInput) error {
	if input.ID == "" {
		return ErrInvalidID
	}
	if !input.Status.Valid() {
		return ErrInvalidStatus
	}

	ctx, span := s.tracer.Start(ctx, "Confirm")
	defer span.End()

	span.SetAttributes(
		attribute.String("advert.id", input.ID),
		attribute.String("advert.confirm_status", string(input.Status)),
	)

	status := "success"
	defer s.observe("Confirm", time.Now(), &status)

	advert, err := s.repository.GetConsistent(ctx, input.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			status = "not_found"
			return ErrAdvertNotFound
		}
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if input.Status == domain.ConfirmActive {
		advert.Status = domain.StatusActive
		err = s.repository.Put(ctx, advert)
	} else {
		err = s.repository.Delete(ctx, advert.ID)
	}
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if input.Status == domain.ConfirmRejected && !s.opts.NotifyOnReject {
		return nil
	}

	if err := s.notifier.PublishConfirmed(ctx, advert.ID, advert.Title); err != nil {
		span.RecordError(err)
		if s.opts.NotificationPolicy == PolicyBestEffort {
			s.logger.ErrorLogger.Error("failed to publish advert confirmation",
				"advert_id", advert.ID, utils.Err(err))
			return nil
		}
		status = "error"
		return fmt.Errorf("%w: %w", ErrNotification, err)
	}

	return nil
}

func (s *advertService) GetByID(ctx context.Context, id string) (*domain.Advert, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "GetByID")
	defer span.End()

	status := "success"
	defer s.observe("GetByID", time.Now(), &status)

	advert, err := s.repository.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			status = "not_found"
			return nil, ErrAdvertNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	span.SetAttributes(attribute.String("advert.id", id))
	return advert, nil
}
