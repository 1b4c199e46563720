package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

const auditWriteTimeout = 5 * time.Second

// AuditMiddleware records every request through writer. Writes happen off the
// request path; failures are logged and never affect the response.
func AuditMiddleware(writer port.AuditWriter, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses context objects, copy what the goroutine needs.
		method := strings.Clone(c.Method())
		path := strings.Clone(c.Path())
		ip := strings.Clone(c.IP())
		userAgent := strings.Clone(c.Get("User-Agent"))

		err := c.Next()

		subject := Subject(c)
		if subject == "" {
			subject = "anonymous"
		}

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		entry := domain.AuditLog{
			ID:         uuid.NewString(),
			Action:     ActionFor(method, path),
			Path:       path,
			Method:     method,
			Status:     status,
			Subject:    subject,
			IP:         ip,
			UserAgent:  userAgent,
			DurationMS: time.Since(start).Milliseconds(),
			CreatedAt:  start.UTC(),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if writeErr := writer.WriteAudit(ctx, entry); writeErr != nil {
				logger.Error("failed to write audit log", "error", writeErr, "path", entry.Path)
			}
		}()

		return err
	}
}

// ActionFor classifies a request for the audit log.
func ActionFor(method, path string) string {
	switch {
	case path == "/metrics":
		return domain.AuditActionScrape
	case path == "/api/v1/status":
		return domain.AuditActionStatus
	case path == "/api/v1/refresh" && method == fiber.MethodPost:
		return domain.AuditActionRefresh
	default:
		return domain.AuditActionRequest
	}
}
