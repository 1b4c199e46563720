package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

var testJWT = JWTConfig{Secret: "s3cret", Issuer: "gitlab-tokens-exporter", ExpiresIn: time.Hour}

func newJWTApp(cfg JWTConfig) *fiber.App {
	app := fiber.New()
	app.Get("/metrics", JWTMiddleware(cfg), func(c fiber.Ctx) error {
		return c.SendString("subject=" + Subject(c))
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	valid, err := GenerateJWT("prometheus", testJWT)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	wrongSecret, _ := GenerateJWT("prometheus", JWTConfig{Secret: "other", Issuer: testJWT.Issuer})
	wrongIssuer, _ := GenerateJWT("prometheus", JWTConfig{Secret: testJWT.Secret, Issuer: "someone-else"})
	expired, _ := GenerateJWT("prometheus", JWTConfig{Secret: testJWT.Secret, Issuer: testJWT.Issuer, ExpiresIn: -time.Minute})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantError  string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, "missing authorization"},
		{"basic scheme", "Basic abc", http.StatusUnauthorized, "missing authorization"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "invalid token"},
		{"wrong secret", "Bearer " + wrongSecret, http.StatusUnauthorized, "invalid token signature"},
		{"wrong issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized, "invalid token issuer"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "token expired"},
	}

	app := newJWTApp(testJWT)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantError != "" {
				var body map[string]string
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["error"] != tt.wantError {
					t.Errorf("error = %q, want %q", body["error"], tt.wantError)
				}
			}
		})
	}
}

func TestJWTMiddleware_DisabledWithoutSecret(t *testing.T) {
	app := newJWTApp(JWTConfig{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 when no secret is configured", resp.StatusCode)
	}
}

func TestValidateJWT_RejectsOtherAlgorithms(t *testing.T) {
	// header {"alg":"none","typ":"JWT"}, payload {"sub":"x","iss":"gitlab-tokens-exporter"}
	token := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ4IiwiaXNzIjoiZ2l0bGFiLXRva2Vucy1leHBvcnRlciJ9."
	if _, err := ValidateJWT(token, testJWT); err == nil {
		t.Error("ValidateJWT() accepted an unsigned token")
	}
}

type chanAuditWriter struct {
	entries chan domain.AuditLog
}

func (w *chanAuditWriter) WriteAudit(_ context.Context, entry domain.AuditLog) error {
	w.entries <- entry
	return nil
}

func (w *chanAuditWriter) ListAuditLogs(context.Context, int, string) ([]domain.AuditLog, error) {
	return nil, nil
}

func TestAuditMiddleware(t *testing.T) {
	writer := &chanAuditWriter{entries: make(chan domain.AuditLog, 4)}

	app := fiber.New()
	app.Use(AuditMiddleware(writer, nil))
	app.Get("/metrics", JWTMiddleware(testJWT), func(c fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/boom", func(c fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	token, _ := GenerateJWT("prometheus", testJWT)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "Prometheus/2.53")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	entry := receive(t, writer.entries)
	if entry.Action != domain.AuditActionScrape || entry.Path != "/metrics" || entry.Method != http.MethodGet {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Subject != "prometheus" || entry.Status != http.StatusOK || entry.UserAgent != "Prometheus/2.53" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Errorf("entry missing id or timestamp: %+v", entry)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	entry = receive(t, writer.entries)
	if entry.Status != http.StatusTeapot || entry.Subject != "anonymous" || entry.Action != domain.AuditActionRequest {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func receive(t *testing.T, ch <-chan domain.AuditLog) domain.AuditLog {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit entry")
		return domain.AuditLog{}
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/metrics", domain.AuditActionScrape},
		{http.MethodGet, "/api/v1/status", domain.AuditActionStatus},
		{http.MethodPost, "/api/v1/refresh", domain.AuditActionRefresh},
		{http.MethodGet, "/api/v1/refresh", domain.AuditActionRequest},
		{http.MethodGet, "/api/v1/refreshes", domain.AuditActionRequest},
	}
	for _, tt := range tests {
		if got := ActionFor(tt.method, tt.path); got != tt.want {
			t.Errorf("ActionFor(%s, %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}
