package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"invoice-vault-go/internal/credentials"
	"invoice-vault-go/internal/repository"
	"invoice-vault-go/internal/scheduler"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db          *gorm.DB
	repo        *repository.Repository
	scheduler   *scheduler.Scheduler
	credentials *credentials.Manager
	oauthConfig *oauth2.Config
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, repo *repository.Repository, sched *scheduler.Scheduler, creds *credentials.Manager, oauthConfig *oauth2.Config) *Handlers {
	return &Handlers{
		db:          db,
		repo:        repo,
		scheduler:   sched,
		credentials: creds,
		oauthConfig: oauthConfig,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		// Scan control
		api.POST("/scan/run", h.RunScan)
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.GET("/scheduler/status", h.GetSchedulerStatus)

		// Archive data
		api.GET("/stats", h.GetStats)
		api.GET("/documents", h.GetRecentDocuments)

		// Credential bootstrap
		api.GET("/auth/url", h.GetAuthURL)
		api.GET("/auth/callback", h.AuthCallback)
		api.DELETE("/auth", h.RevokeCredential)
	}
}
