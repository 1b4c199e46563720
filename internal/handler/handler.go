package handler

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// TokensState is the view of the tokens actor the HTTP layer needs.
type TokensState interface {
	GetState(ctx context.Context) (string, error)
	Status(ctx context.Context) (domain.State, error)
	Trigger(ctx context.Context) (bool, error)
}

// queryLimit reads ?limit= with a default and an upper bound.
func queryLimit(c fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func unavailable(c fiber.Ctx, err error) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
}
