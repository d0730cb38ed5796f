package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	domrepo "StockPulse/internal/domain/repository"
	xhttp "StockPulse/pkg/http"
)

// HealthChecker reports readiness of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler aggregates dependency health into one endpoint.
type HealthHandler struct {
	storage domrepo.Storage
	stream  domrepo.MarketStream
	checks  map[string]HealthChecker
}

func NewHealthHandler(storage domrepo.Storage, stream domrepo.MarketStream) *HealthHandler {
	return &HealthHandler{storage: storage, stream: stream, checks: make(map[string]HealthChecker)}
}

// AddCheck registers a named dependency check.
func (h *HealthHandler) AddCheck(name string, c HealthChecker) {
	h.checks[name] = c
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}

// Healthz is liveness: the process is up.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Readyz is readiness: dependencies answer.
func (h *HealthHandler) Readyz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true

	if h.storage != nil {
		if err := h.storage.Health(ctx); err != nil {
			status["storage"] = err.Error()
			healthy = false
		} else {
			status["storage"] = "ok"
		}
	}
	if h.stream != nil {
		if h.stream.IsConnected() {
			status["stream"] = "ok"
		} else {
			status["stream"] = "disconnected"
			healthy = false
		}
	}
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
		} else {
			status[name] = "ok"
		}
	}

	if !healthy {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("dependencies degraded").WithParam("status", status))
	}
	return xhttp.SuccessResponse(c, status)
}
