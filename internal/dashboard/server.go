package dashboard

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"klaxon/internal/config"
	"klaxon/internal/logger"
	"klaxon/pkg/middleware"
	"klaxon/pkg/ratelimit"
)

//go:embed index.html
var indexHTML []byte

// Server hosts the local dashboard: a single HTML page, the JSON API behind
// it, the health endpoint, and Prometheus metrics.
type Server struct {
	cfg    config.ServerConfig
	srv    *http.Server
	logger logger.Logger
}

func NewServer(cfg config.ServerConfig, handler *Handler, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RecoveryMiddleware(log))

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	router.GET("/health", handler.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if cfg.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		if cfg.RateLimit.RPS > 0 {
			rlCfg.RPS = cfg.RateLimit.RPS
		}
		if cfg.RateLimit.Burst > 0 {
			rlCfg.Burst = cfg.RateLimit.Burst
		}
		if cfg.RateLimit.CleanupInterval > 0 {
			rlCfg.CleanupInterval = time.Duration(cfg.RateLimit.CleanupInterval) * time.Second
		}
		if cfg.RateLimit.MaxAge > 0 {
			rlCfg.MaxAge = time.Duration(cfg.RateLimit.MaxAge) * time.Second
		}
		api.Use(ratelimit.RateLimitMiddleware(rlCfg))
	}
	api.GET("/stats", handler.GetStats)
	api.GET("/sounds", handler.GetSounds)

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: log,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("Dashboard server listening",
			"addr", s.srv.Addr,
		)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
