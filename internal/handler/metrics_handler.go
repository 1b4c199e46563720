package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/adapter/metrics"
)

// MetricsHandler serves the current snapshot to scrapers.
type MetricsHandler struct {
	state TokensState
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(state TokensState) *MetricsHandler {
	return &MetricsHandler{state: state}
}

// Register sets up the scrape route behind guard.
func (h *MetricsHandler) Register(router fiber.Router, guard fiber.Handler) {
	router.Get("/metrics", guard, h.Scrape)
}

// Scrape writes the snapshot as-is. Before the first successful refresh the
// body is empty.
func (h *MetricsHandler) Scrape(c fiber.Ctx) error {
	snapshot, err := h.state.GetState(c.Context())
	if err != nil {
		return unavailable(c, err)
	}
	c.Set(fiber.HeaderContentType, metrics.ContentType)
	return c.SendString(snapshot)
}
