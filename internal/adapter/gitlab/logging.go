package gitlab

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/logutil"
)

// LoggingTransport wraps an http.RoundTripper and logs every exchange.
// Header values are never logged, so credentials cannot leak.
type LoggingTransport struct {
	Transport http.RoundTripper
	logger    *slog.Logger
}

// NewLoggingTransport creates a new logging transport wrapper.
func NewLoggingTransport(transport http.RoundTripper, logger *slog.Logger) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		logger:    logutil.NoopIfNil(logger),
	}
}

// RoundTrip executes a single HTTP transaction.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.logger.Warn("gitlab request failed",
			"method", req.Method,
			"path", req.URL.Path,
			"duration", duration,
			"error", err,
		)
		return nil, err
	}

	t.logger.Debug("gitlab request",
		"method", req.Method,
		"path", req.URL.Path,
		"query", req.URL.RawQuery,
		"status", resp.StatusCode,
		"duration", duration,
	)
	return resp, nil
}
