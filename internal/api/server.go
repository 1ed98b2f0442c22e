// Package api provides the REST management API for DomainGuard.
// It exposes endpoints for health checks, statistics, blocklist source
// management, custom rules, and decision probes via a Gin-based HTTP
// server, plus Prometheus metrics at /metrics.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jroosing/domainguard/internal/api/handlers"
	"github.com/jroosing/domainguard/internal/api/middleware"
	"github.com/jroosing/domainguard/internal/blocklist"
	"github.com/jroosing/domainguard/internal/config"
	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/engine"
)

// Server is the management REST API server.
//
// Security note: do not expose the API to untrusted networks without an
// API key configured.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func New(cfg *config.Config, db *database.DB, manager *blocklist.Manager, backend engine.Backend, logger *slog.Logger) *Server {
	if cfg == nil {
		panic("api.New: cfg is nil")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SlogRequestLogger(logger))

	h := handlers.New(cfg, db, manager, backend, logger)
	RegisterRoutes(router, h, cfg)
	MountSPA(router, logger)

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{cfg: cfg, logger: logger, engine: router, httpServer: httpServer}
}

func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
