// Package handlers implements the REST API endpoint handlers for
// DomainGuard.
//
// REST API Endpoints:
//
// System:
//   - GET /api/v1/health - Health check status
//   - GET /api/v1/stats - Runtime and filtering statistics
//   - GET /metrics - Prometheus metrics (outside the versioned group)
//
// Sources (blocklist aggregation):
//   - GET /api/v1/sources - List configured blocklist sources
//   - POST /api/v1/sources - Register a new source (disabled by default)
//   - POST /api/v1/sources/refresh - Refresh all enabled sources
//   - POST /api/v1/sources/:id/refresh - Refresh one source
//   - PUT /api/v1/sources/:id/enabled - Enable or disable a source
//   - DELETE /api/v1/sources/:id - Delete a source and its contribution
//
// Rules (custom overrides):
//   - GET /api/v1/rules - List custom rules
//   - POST /api/v1/rules - Create a custom rule
//   - PUT /api/v1/rules/:id/enabled - Enable or disable a rule
//   - DELETE /api/v1/rules/:id - Delete a rule
//
// Filtering:
//   - GET /api/v1/query?domain=&app= - Probe the decision for a domain
//   - POST /api/v1/apply - Commit pending changes to the backend
//   - POST /api/v1/revert - Withdraw the backend's effect
//
// Authentication: when an API key is configured, every endpoint except
// /health requires the X-API-Key header.
package handlers

import (
	"log/slog"
	"time"

	"github.com/jroosing/domainguard/internal/blocklist"
	"github.com/jroosing/domainguard/internal/config"
	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/engine"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	db        *database.DB
	manager   *blocklist.Manager
	backend   engine.Backend
	logger    *slog.Logger
	startTime time.Time
}

// New creates a Handler. db, manager, and backend may be nil in tests
// that only exercise the system endpoints.
func New(cfg *config.Config, db *database.DB, manager *blocklist.Manager, backend engine.Backend, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:       cfg,
		db:        db,
		manager:   manager,
		backend:   backend,
		logger:    logger,
		startTime: time.Now(),
	}
}
