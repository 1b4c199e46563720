package port

import "github.com/arturoeanton/gitlab-tokens-exporter/internal/domain"

// Renderer turns one (project, token) pair into a metrics text fragment.
type Renderer interface {
	Render(project domain.Project, token domain.AccessToken) (string, error)
}

// FragmentJoiner is implemented by renderers whose fragments cannot simply be
// concatenated, for instance when two fragments declare the same metric family.
type FragmentJoiner interface {
	Join(fragments []string) string
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(project domain.Project, token domain.AccessToken) (string, error)

// Render calls f.
func (f RendererFunc) Render(project domain.Project, token domain.AccessToken) (string, error) {
	return f(project, token)
}
