package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"advert-service/internal/domain"
	"advert-service/internal/service"
	"advert-service/pkg/logger"
	"advert-service/pkg/utils"

	"advert-service/internal/infrastructure/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HealthChecker is satisfied by *health.Checker.
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}

type CreateAdvertResponse struct {
	ID string `json:"id"`
}

type HealthResponse struct {
	Healthy bool `json:"healthy"`
}

type AdvertHandler struct {
	service  service.AdvertService
	health   HealthChecker
	validate *validator.Validate
	logger   *logger.Loggers
	metrics  *metrics.HandlerMetrics
	tracer   trace.Tracer
}

func NewAdvertHandler(service service.AdvertService, health HealthChecker, logger *logger.Loggers, metrics *metrics.HandlerMetrics) *AdvertHandler {
	tracer := otel.Tracer("advert-service/handler")
	return &AdvertHandler{
		service:  service,
		health:   health,
		validate: newValidator(),
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *AdvertHandler) observe(method, endpoint string, startTime time.Time, status *string) {
	duration := time.Since(startTime).Seconds()
	h.metrics.RequestCount.WithLabelValues(method, endpoint, *status).Inc()
	h.metrics.RequestDuration.WithLabelValues(method, endpoint, *status).Observe(duration)
}

func (h *AdvertHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Create")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodPost, "/adverts/v1/create", time.Now(), &status)

	var input domain.CreateAdvertInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		status = "error"
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.validate.Struct(input); err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid advert: "+fieldList(err))
		return
	}

	span.SetAttributes(
		attribute.String("advert.title", input.Title),
		attribute.Float64("advert.price", input.Price),
	)

	id, err := h.service.Add(ctx, input)
	if err != nil {
		status = "error"
		h.logger.ErrorLogger.Error("could not create advert", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, CreateAdvertResponse{ID: id})
}

func (h *AdvertHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Confirm")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodPut, "/adverts/v1/confirm", time.Now(), &status)

	var input domain.ConfirmAdvertInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		status = "error"
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.validate.Struct(input); err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid confirmation: "+fieldList(err))
		return
	}

	span.SetAttributes(
		attribute.String("advert.id", input.ID),
		attribute.String("advert.confirm_status", string(input.Status)),
	)

	err := h.service.Confirm(ctx, input)
	if err != nil {
		if errors.Is(err, service.ErrAdvertNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "advert not found")
		} else if errors.Is(err, service.ErrInvalidID) || errors.Is(err, service.ErrInvalidStatus) {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid confirmation")
		} else {
			status = "error"
			h.logger.ErrorLogger.Error("failed to confirm advert", "advert_id", input.ID, utils.Err(err))
			span.RecordError(err)
			utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, struct{}{})
}

func (h *AdvertHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetByID")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodGet, "/adverts/v1/{id}", time.Now(), &status)

	id := chi.URLParam(r, "id")
	if id == "" {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	span.SetAttributes(attribute.String("advert.id", id))

	advert, err := h.service.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrAdvertNotFound) {
			status = "not_found"
			utils.RespondWithErrorJSON(w, http.StatusNotFound, "advert not found")
		} else {
			status = "error"
			h.logger.ErrorLogger.Error("failed to get advert by ID", utils.Err(err))
			span.RecordError(err)
			utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, advert)
}

func (h *AdvertHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Health")
	defer span.End()

	status := "success"
	defer h.observe(http.MethodGet, "/health", time.Now(), &status)

	healthy := h.health.CheckHealth(ctx)
	span.SetAttributes(attribute.Bool("storage.healthy", healthy))

	if !healthy {
		status = "unhealthy"
		utils.RespondWithJSON(w, http.StatusServiceUnavailable, HealthResponse{Healthy: false})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, HealthResponse{Healthy: true})
}

// fieldList names the fields that failed validation without echoing values.
func fieldList(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "malformed input"
	}

	out := ""
	for i, fe := range verrs {
		if i > 0 {
			out += ", "
		}
		out += fe.Field() + " (" + fe.Tag() + ")"
	}
	return out
}
