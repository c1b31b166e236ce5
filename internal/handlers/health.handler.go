package handlers

import (
	"github.com/fasthttp/router"
	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
	"github.com/nimasrn/sms-ledger/pkg/logger"
)

type HealthService interface {
	Get() error
}

type HealthHandler struct {
	svc HealthService
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{
		svc: svc,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	if err := h.svc.Get(); err != nil {
		logger.Warn("health check failed", "error", err)
		writeJSON(ctx, xhttp.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	writeJSON(ctx, xhttp.StatusOK, healthResponse{Status: "healthy"})
}
