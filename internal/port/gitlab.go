package port

import (
	"context"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

// TokenSource abstracts the GitLab API calls a refresh needs.
type TokenSource interface {
	// ListProjects returns every project visible to the configured token, in API order.
	ListProjects(ctx context.Context) ([]domain.Project, error)

	// ListProjectAccessTokens returns the access tokens of one project, in API order.
	ListProjectAccessTokens(ctx context.Context, projectID int) ([]domain.AccessToken, error)
}
