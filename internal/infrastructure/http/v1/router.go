// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"albaran/internal/domain/deliverynote"
	"albaran/internal/infrastructure/http/v1/handlers"
	"albaran/internal/infrastructure/http/v1/middleware"
	"albaran/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database pool, used by the readiness probe.
	Pool *pgxpool.Pool

	// Logger for request logging.
	Logger *logger.Logger

	// JWTValidator for token validation.
	JWTValidator middleware.JWTValidator

	// DeliveryNotes is the lifecycle service.
	DeliveryNotes *deliverynote.Service

	// Version reported by the info endpoint.
	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints, no auth required
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1, bearer token required
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))

	baseHandler := handlers.NewBaseHandler()
	noteHandler := handlers.NewDeliveryNoteHandler(baseHandler, cfg.DeliveryNotes)

	notes := api.Group("/deliverynote")
	{
		notes.POST("", noteHandler.Create)
		notes.GET("", noteHandler.List)
		notes.GET("/:id", noteHandler.Get)
		notes.PUT("/:id", noteHandler.Update)
		notes.PATCH("/:id", noteHandler.Update)
		notes.DELETE("/:id", noteHandler.Delete)
		notes.PATCH("/sign/:id", noteHandler.Sign)
		notes.GET("/pdf/:id", noteHandler.DownloadPDF)
		notes.GET("/audit/:id", noteHandler.AuditTrail)
	}

	return router
}
