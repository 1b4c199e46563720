package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrActorStopped       = errors.New("tokens actor stopped")
	ErrRefreshInProgress  = errors.New("refresh already in progress")
	ErrMissingBaseURL     = errors.New("gitlab base url is not set")
	ErrMissingToken       = errors.New("gitlab token is not set")
	ErrUnknownDriver      = errors.New("unknown history driver")
	ErrInvalidRenderInput = errors.New("invalid render input")
)
