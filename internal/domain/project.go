package domain

// Project is a GitLab project as returned by GET /api/v4/projects.
type Project struct {
	ID                int    `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
}
