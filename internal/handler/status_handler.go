package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

// StatusHandler exposes actor state, manual refreshes and refresh history.
type StatusHandler struct {
	state TokensState
	runs  port.RunRecorder
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(state TokensState, runs port.RunRecorder) *StatusHandler {
	return &StatusHandler{state: state, runs: runs}
}

// Register sets up status routes.
func (h *StatusHandler) Register(router fiber.Router) {
	router.Get("/status", h.Status)
	router.Post("/refresh", h.Refresh)
	router.Get("/refreshes", h.ListRefreshes)
}

// Status returns the actor state without the snapshot body.
func (h *StatusHandler) Status(c fiber.Ctx) error {
	st, err := h.state.Status(c.Context())
	if err != nil {
		return unavailable(c, err)
	}
	return c.JSON(fiber.Map{
		"state": st,
		"stale": st.Stale(),
	})
}

// Refresh starts a refresh unless one is already running.
func (h *StatusHandler) Refresh(c fiber.Ctx) error {
	started, err := h.state.Trigger(c.Context())
	if err != nil {
		return unavailable(c, err)
	}
	if !started {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": port.ErrRefreshInProgress.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
}

// ListRefreshes returns the most recent refresh runs.
func (h *StatusHandler) ListRefreshes(c fiber.Ctx) error {
	runs, err := h.runs.ListRuns(c.Context(), queryLimit(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if runs == nil {
		runs = []domain.RefreshRun{}
	}
	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

// Health reports liveness. It never touches the actor.
func Health(appName, version string) fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     appName,
			"version": version,
		})
	}
}
