package collab

import (
	"context"
	"net/http"

	"github.com/okian/meetlink/internal/domain/model"
)

// ProjectsClient reads the project list from the registry service.
type ProjectsClient struct {
	c client
}

// NewProjectsClient creates a registry client rooted at baseURL.
func NewProjectsClient(baseURL string, opts ...Option) *ProjectsClient {
	return &ProjectsClient{c: newClient(baseURL, opts...)}
}

type projectDTO struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Projects returns every registered project.
func (p *ProjectsClient) Projects(ctx context.Context) ([]model.ProjectCandidate, error) {
	var out struct {
		Projects []projectDTO `json:"projects"`
	}
	if err := p.c.do(ctx, http.MethodGet, "/projects", nil, &out); err != nil {
		return nil, err
	}
	projects := make([]model.ProjectCandidate, 0, len(out.Projects))
	for _, d := range out.Projects {
		if d.Key == "" {
			continue
		}
		projects = append(projects, model.ProjectCandidate{Key: d.Key, Name: d.Name, Keywords: d.Keywords})
	}
	return projects, nil
}
