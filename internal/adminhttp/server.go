// Package adminhttp is the small gin-based HTTP sidecar that exposes
// health, metrics, and version endpoints alongside the line-protocol TCP
// game server. The game protocol itself has no HTTP surface; this is
// operational tooling only.
package adminhttp

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"blokusserver/internal/config"
	"blokusserver/internal/database"
	"blokusserver/internal/logging"
	"blokusserver/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the admin HTTP listener.
type Server struct {
	httpServer *http.Server
}

// New builds the admin router: CORS, correlation IDs, recovery, /healthz,
// /metrics, /version. db is pinged by /healthz; may be nil in tests.
func New(cfg *config.Config, db *database.Gateway, activeSessions func() int) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(middleware.CorrelationID())

	router.GET("/healthz", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		httpStatus := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				httpStatus = http.StatusServiceUnavailable
			}
		}
		if activeSessions != nil {
			status["active_sessions"] = activeSessions()
		}
		c.JSON(httpStatus, status)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    cfg.ServerVersion,
			"buildDate":  cfg.BuildDate,
			"gitCommit":  cfg.GitCommit,
			"branch":     cfg.Branch,
			"features":   cfg.Features,
			"production": cfg.IsProduction,
		})
	})

	port := cfg.MetricsPort
	if port <= 0 {
		port = 9090
	}
	return &Server{httpServer: &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: router,
	}}
}

// Run starts serving and blocks until the listener stops or errors.
func (s *Server) Run() error {
	logging.Info(context.Background(), "admin http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the admin server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
