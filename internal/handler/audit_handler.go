package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store port.AuditWriter
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(store port.AuditWriter) *AuditHandler {
	return &AuditHandler{store: store}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit")
	audit.Get("/logs", h.ListLogs)
}

// ListLogs returns audit logs with optional filtering.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), queryLimit(c), action)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
