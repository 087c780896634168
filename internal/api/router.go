package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openfedx/offering-service/internal/app"
	"github.com/openfedx/offering-service/internal/handlers"
	"github.com/openfedx/offering-service/internal/middleware"
)

// OfferingBackend is everything the HTTP surface needs from the service layer.
type OfferingBackend interface {
	handlers.OfferingCoordinator
	handlers.ContractEventSink
}

// NewRouter builds the Gin engine, wires middleware and registers the offering
// routes.
func NewRouter(cfg *app.Config, svc OfferingBackend) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("offering service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}

	offeringHandler, err := handlers.NewOfferingHandler(svc)
	if err != nil {
		return nil, err
	}

	notificationHandler, err := handlers.NewNotificationHandler(svc)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")

	offerings := api.Group("/offerings")
	{
		offerings.POST("", offeringHandler.Publish)
		offerings.GET("", offeringHandler.ListPublic)
		offerings.GET("/:id", offeringHandler.Get)
		offerings.POST("/:id/transition", offeringHandler.Transition)
		offerings.POST("/:id/regenerate", offeringHandler.Regenerate)
	}

	api.GET("/organizations/:orgId/offerings", offeringHandler.ListByOrganization)

	notifications := api.Group("/notifications")
	{
		notifications.POST("/contract-created", notificationHandler.ContractCreated)
		notifications.POST("/contract-purged", notificationHandler.ContractPurged)
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
