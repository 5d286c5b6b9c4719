package router

import (
	"net/http"

	"planandgo/internal/handlers/api/v1/activities"
	"planandgo/internal/handlers/api/v1/badges"
	"planandgo/internal/handlers/api/v1/trades"
	"planandgo/internal/middleware"
	"planandgo/internal/response"
	"planandgo/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(
	serviceCollection *services.ServiceCollection,
	authMiddleware *middleware.AuthMiddleware,
	responseBuilder *response.Builder,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recovery(logger))

	badgeController := badges.NewBadgeController(serviceCollection, logger, responseBuilder)
	tradeController := trades.NewTradeController(serviceCollection, logger, responseBuilder)
	activityController := activities.NewActivityController(serviceCollection, logger, responseBuilder)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := serviceCollection.Health(req.Context()); err != nil {
			logger.Error("Health check failed", zap.Error(err))
			http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog
		r.Get("/badges", badgeController.ListBadges)
		r.Get("/badges/{id:[0-9]+}", badgeController.GetBadge)

		// Authenticated surface
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)

			r.Get("/badges/mine", badgeController.GetMyBadges)

			r.Post("/trades", tradeController.CreateTrade)
			r.Get("/trades", tradeController.ListTrades)
			r.Get("/trades/{id:[0-9]+}", tradeController.GetTrade)
			r.Post("/trades/{id:[0-9]+}/decision", tradeController.DecideTrade)

			r.Post("/activities", activityController.RecordActivity)
			r.Get("/activities", activityController.ListActivities)
		})

		// Admin surface
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAdmin)
			r.Post("/badges", badgeController.CreateBadge)
		})
	})

	return r
}
