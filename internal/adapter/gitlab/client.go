package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
)

// DefaultProjectsQuery lists active projects the token can maintain, 100 per page.
const DefaultProjectsQuery = "per_page=100&simple=true&archived=false&min_access_level=40"

// Client implements port.TokenSource on top of GetAll.
type Client struct {
	baseURL       string
	projectsQuery string
	httpClient    Doer
}

// NewClient creates a GitLab client for baseURL. The http client is expected to
// carry authentication (see NewHTTPClient).
func NewClient(baseURL string, httpClient Doer, projectsQuery string) *Client {
	if projectsQuery == "" {
		projectsQuery = DefaultProjectsQuery
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		projectsQuery: strings.TrimPrefix(projectsQuery, "?"),
		httpClient:    httpClient,
	}
}

// ListProjects returns all projects visible to the token.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	u := fmt.Sprintf("%s/api/v4/projects?%s", c.baseURL, c.projectsQuery)
	projects, err := GetAll[domain.Project](ctx, c.httpClient, u)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListProjectAccessTokens returns the access tokens of one project.
//
// cf https://docs.gitlab.com/ee/api/project_access_tokens.html#list-project-access-tokens
func (c *Client) ListProjectAccessTokens(ctx context.Context, projectID int) ([]domain.AccessToken, error) {
	u := fmt.Sprintf("%s/api/v4/projects/%d/access_tokens?per_page=100", c.baseURL, projectID)
	tokens, err := GetAll[domain.AccessToken](ctx, c.httpClient, u)
	if err != nil {
		return nil, fmt.Errorf("list access tokens of project %d: %w", projectID, err)
	}
	return tokens, nil
}
