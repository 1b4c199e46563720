package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/logutil"
	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

// RenderErrorPolicy decides what a refresh does when a fragment cannot be rendered.
type RenderErrorPolicy string

const (
	// RenderErrorSkip logs the failure and leaves the fragment out.
	RenderErrorSkip RenderErrorPolicy = "skip"
	// RenderErrorFail aborts the whole refresh.
	RenderErrorFail RenderErrorPolicy = "fail"
)

// DefaultFetchConcurrency bounds parallel per-project token requests.
const DefaultFetchConcurrency = 4

// RefreshResult is the output of one successful refresh.
type RefreshResult struct {
	Snapshot string
	Projects int
	Tokens   int
	Skipped  int
}

// RefreshService fetches every project's access tokens and renders the snapshot.
type RefreshService struct {
	source      port.TokenSource
	renderer    port.Renderer
	concurrency int
	policy      RenderErrorPolicy
	logger      *slog.Logger
}

// NewRefreshService creates a refresh service. concurrency <= 0 uses
// DefaultFetchConcurrency; an empty policy means RenderErrorSkip.
func NewRefreshService(source port.TokenSource, renderer port.Renderer, concurrency int, policy RenderErrorPolicy, logger *slog.Logger) *RefreshService {
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	if policy == "" {
		policy = RenderErrorSkip
	}
	return &RefreshService{
		source:      source,
		renderer:    renderer,
		concurrency: concurrency,
		policy:      policy,
		logger:      logutil.NoopIfNil(logger),
	}
}

// Refresh runs one full fetch-and-render cycle. It is all-or-nothing: any
// fetch error fails the refresh and no partial snapshot is returned.
func (s *RefreshService) Refresh(ctx context.Context) (RefreshResult, error) {
	projects, err := s.source.ListProjects(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	tokens, err := s.fetchTokens(ctx, projects)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}

	result := RefreshResult{Projects: len(projects)}
	var fragments []string
	for i, project := range projects {
		if len(tokens[i]) == 0 {
			continue
		}
		s.logger.Debug("project access tokens", "project", project.PathWithNamespace, "count", len(tokens[i]))
		for _, token := range tokens[i] {
			fragment, err := s.renderer.Render(project, token)
			if err != nil {
				if s.policy == RenderErrorFail {
					return RefreshResult{}, fmt.Errorf("refresh: render %s/%s: %w", project.PathWithNamespace, token.Name, err)
				}
				s.logger.Warn("skipping token metric",
					"project", project.PathWithNamespace,
					"token", token.Name,
					"error", err,
				)
				result.Skipped++
				continue
			}
			fragments = append(fragments, fragment)
			result.Tokens++
		}
	}

	if joiner, ok := s.renderer.(port.FragmentJoiner); ok {
		result.Snapshot = joiner.Join(fragments)
	} else {
		result.Snapshot = strings.Join(fragments, "")
	}
	return result, nil
}

// fetchTokens returns the tokens of each project, indexed like projects.
func (s *RefreshService) fetchTokens(ctx context.Context, projects []domain.Project) ([][]domain.AccessToken, error) {
	tokens := make([][]domain.AccessToken, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, project := range projects {
		g.Go(func() error {
			list, err := s.source.ListProjectAccessTokens(gctx, project.ID)
			if err != nil {
				return fmt.Errorf("project %s: %w", project.PathWithNamespace, err)
			}
			tokens[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tokens, nil
}
