package router

import (
	"net/http"

	"advert-service/internal/delivery/handler"
	"advert-service/internal/infrastructure/metrics"
	"advert-service/internal/service"
	"advert-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupAdvertRoutes(r *chi.Mux, advertService service.AdvertService, health handler.HealthChecker, loggers *logger.Loggers, metrics *metrics.HandlerMetrics) {
	advertHandler := handler.NewAdvertHandler(advertService, health, loggers, metrics)

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/adverts/v1", func(r chi.Router) {
		r.Post("/create", advertHandler.Create)
		r.Put("/confirm", advertHandler.Confirm)
		// existing clients call the capitalised action names
		r.Post("/Create", advertHandler.Create)
		r.Put("/Confirm", advertHandler.Confirm)
		r.Get("/{id}", advertHandler.GetByID)
	})

	r.Get("/health", advertHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.HTTPHandler())
}
