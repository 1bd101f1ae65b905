// Package api serves the lead workflow over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadyard/internal/auth"
	"github.com/zulandar/leadyard/internal/background"
	"github.com/zulandar/leadyard/internal/matching"
	"github.com/zulandar/leadyard/internal/metrics"
	"github.com/zulandar/leadyard/internal/notify"
	"github.com/zulandar/leadyard/internal/payment"
	"gorm.io/gorm"
)

// shutdownTimeout bounds how long in-flight requests may take to drain.
const shutdownTimeout = 10 * time.Second

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB   *gorm.DB
	Port int
	Out  io.Writer
	Auth *auth.Verifier

	// MockPayments enables the direct purchase endpoint. When false, locks
	// open a checkout session through Gateway and leads settle from
	// webhooks handled by Finalizer.
	MockPayments bool
	Gateway      *payment.Gateway
	Finalizer    *payment.Finalizer

	Trigger     *matching.Trigger  // optional
	Metrics     *metrics.Metrics   // optional
	MetricsPath string             // defaults to /metrics
	Notifier    notify.Notifier    // optional
	Runner      *background.Runner // required with Notifier
}

func (o *StartOpts) validate() error {
	if o.DB == nil {
		return fmt.Errorf("api: db is required")
	}
	if o.Auth == nil {
		return fmt.Errorf("api: auth verifier is required")
	}
	if !o.MockPayments && (o.Gateway == nil || o.Finalizer == nil) {
		return fmt.Errorf("api: live payments require a gateway and a finalizer")
	}
	if o.MetricsPath == "" {
		o.MetricsPath = "/metrics"
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observe(opts.Metrics))
	registerRoutes(router, &server{opts: opts})
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Leadyard API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// observe records request latency by matched route.
func observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
