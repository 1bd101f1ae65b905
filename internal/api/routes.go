package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadyard/internal/auth"
	"github.com/zulandar/leadyard/internal/lead"
)

type server struct {
	opts StartOpts
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	router.GET("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		router.GET(s.opts.MetricsPath, gin.WrapH(s.opts.Metrics.Handler()))
	}

	required := s.opts.Auth.Required()
	leads := router.Group("/api/leads")
	leads.GET("/mine", required, s.handleMine)
	leads.GET("/marketplace", required, s.handleMarketplace)
	leads.POST("/:id/lock", required, s.handleLock)
	leads.POST("/:id/purchase", required, s.handlePurchase)
	leads.POST("/:id/status", required, s.handleStatus)
	leads.GET("/:id/events", required, s.handleEvents)
	leads.POST("/:id/view", s.opts.Auth.Optional(), s.handleView)

	router.POST("/api/projects/:id/submit", required, s.handleSubmit)

	if s.opts.Finalizer != nil {
		router.POST("/api/webhooks/stripe", s.handleStripeWebhook)
	}
}

func (s *server) handleHealth(c *gin.Context) {
	sqlDB, err := s.opts.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// viewer resolves the authenticated caller's profile. On failure the error
// response is written and ok is false.
func (s *server) viewer(c *gin.Context) (v lead.Viewer, ok bool) {
	v, err := lead.LoadViewer(s.db(c), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return v, false
	}
	return v, true
}
