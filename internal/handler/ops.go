// Package handler registers the ops server routes.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"OptForge/internal/usecase"
)

// HealthChecker reports connectivity of a backing store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// OpsHandler serves health and progress for a running batch.
type OpsHandler struct {
	progress *usecase.Progress
	checks   map[string]HealthChecker
}

// NewOpsHandler creates the handler. checks maps a component name to its
// health probe; nil checkers are allowed and skipped.
func NewOpsHandler(progress *usecase.Progress, checks map[string]HealthChecker) *OpsHandler {
	return &OpsHandler{progress: progress, checks: checks}
}

// RegisterRoutes mounts the ops routes.
func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/progress", h.progressSnapshot)
}

func (h *OpsHandler) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check.Health(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	return c.JSON(status, map[string]interface{}{
		"status":     http.StatusText(status),
		"components": components,
	})
}

func (h *OpsHandler) progressSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, h.progress.Snapshot())
}
