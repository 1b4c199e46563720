package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

const subjectKey = "subject"

// JWTConfig holds JWT middleware configuration.
type JWTConfig struct {
	Secret    string
	Issuer    string
	ExpiresIn time.Duration
}

// Enabled reports whether a secret is configured.
func (cfg JWTConfig) Enabled() bool {
	return cfg.Secret != ""
}

// Claims is the scrape token payload.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTMiddleware creates a Fiber middleware that validates HS256 bearer tokens
// and stores the token subject in the request locals. With no secret
// configured every request passes through.
func JWTMiddleware(cfg JWTConfig) fiber.Handler {
	if !cfg.Enabled() {
		return func(c fiber.Ctx) error { return c.Next() }
	}

	return func(c fiber.Ctx) error {
		var token string

		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = strings.TrimSpace(parts[1])
			}
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization",
			})
		}

		claims, err := ValidateJWT(token, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals(subjectKey, claims.Subject)
		return c.Next()
	}
}

// Subject returns the authenticated token subject, or "" for anonymous requests.
func Subject(c fiber.Ctx) string {
	s, _ := c.Locals(subjectKey).(string)
	return s
}

// GenerateJWT signs a scrape token for subject.
func GenerateJWT(subject string, cfg JWTConfig) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			Issuer:   cfg.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if cfg.ExpiresIn != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(cfg.ExpiresIn))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// ValidateJWT parses tokenStr and checks its signature, expiry and issuer.
func ValidateJWT(tokenStr string, cfg JWTConfig) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errors.New("token expired")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return nil, errors.New("invalid token issuer")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, errors.New("invalid token signature")
	default:
		return nil, errors.New("invalid token")
	}
}
