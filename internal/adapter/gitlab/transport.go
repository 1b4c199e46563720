package gitlab

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Auth modes.
const (
	AuthModePrivateToken = "private-token"
	AuthModeBearer       = "bearer"
)

// PrivateTokenHeader is the header GitLab reads personal/project tokens from.
const PrivateTokenHeader = "PRIVATE-TOKEN"

// NewHTTPClient returns an *http.Client that authenticates every request with
// token and logs requests through logger at debug level.
func NewHTTPClient(mode, token string, timeout time.Duration, logger *slog.Logger) (*http.Client, error) {
	var base http.RoundTripper = NewLoggingTransport(http.DefaultTransport, logger)

	var rt http.RoundTripper
	switch mode {
	case AuthModePrivateToken, "":
		rt = &privateTokenTransport{token: token, base: base}
	case AuthModeBearer:
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base,
		}
	default:
		return nil, fmt.Errorf("gitlab: unknown auth mode %q", mode)
	}

	return &http.Client{Transport: rt, Timeout: timeout}, nil
}

type privateTokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *privateTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set(PrivateTokenHeader, t.token)
	return t.base.RoundTrip(r)
}
