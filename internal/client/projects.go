package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	http_internal "github.com/fivetwenty-io/dtcloud/internal/http"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
)

// ProjectsClient implements the dtcloud.ProjectsClient interface.
type ProjectsClient struct {
	httpClient *http_internal.Client
}

// NewProjectsClient creates a new ProjectsClient.
func NewProjectsClient(httpClient *http_internal.Client) *ProjectsClient {
	return &ProjectsClient{
		httpClient: httpClient,
	}
}

// Get retrieves a project.
func (c *ProjectsClient) Get(ctx context.Context, projectID string) (*dtcloud.Project, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	project, err := http_internal.Send[dtcloud.Project](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodGet,
		Path:   projectPath(projectID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}

	return project, nil
}

// List retrieves every project visible to the caller.
func (c *ProjectsClient) List(ctx context.Context, opts *dtcloud.ProjectListOptions) ([]dtcloud.Project, error) {
	return collect[dtcloud.Project](ctx, c.httpClient, listProjectsRequest(opts), constants.PagingKeyProjects, projectPageSize(opts), "projects")
}

// ListPage retrieves one page of projects.
func (c *ProjectsClient) ListPage(ctx context.Context, opts *dtcloud.ProjectListOptions, pageToken string) (*dtcloud.PagedResult[dtcloud.Project], error) {
	page, err := http_internal.GetPage[dtcloud.Project](ctx, c.httpClient, listProjectsRequest(opts), constants.PagingKeyProjects, projectPageSize(opts), pageToken)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	return page, nil
}

func listProjectsRequest(opts *dtcloud.ProjectListOptions) *http_internal.Request {
	return &http_internal.Request{
		Method: http.MethodGet,
		Path:   "/projects",
		Query:  opts.Values(),
	}
}

func projectPageSize(opts *dtcloud.ProjectListOptions) int {
	if opts == nil {
		return 0
	}

	return opts.PageSize
}

// Create creates a project in an organization. The organization may be given
// as an ID or as a resource name.
func (c *ProjectsClient) Create(ctx context.Context, request *dtcloud.ProjectCreateRequest) (*dtcloud.Project, error) {
	if request == nil || request.Organization == "" {
		return nil, requireID("", ErrOrganizationIDRequired)
	}

	body := *request
	if dtcloud.ParseResourceName(body.Organization)["organizations"] == "" {
		body.Organization = dtcloud.OrganizationName(body.Organization)
	}

	project, err := http_internal.Send[dtcloud.Project](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPost,
		Path:   "/projects",
		Body:   &body,
	})
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	return project, nil
}

// Update changes the display name of a project.
func (c *ProjectsClient) Update(ctx context.Context, projectID string, request *dtcloud.ProjectUpdateRequest) (*dtcloud.Project, error) {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return nil, err
	}

	project, err := http_internal.Send[dtcloud.Project](ctx, c.httpClient, &http_internal.Request{
		Method: http.MethodPatch,
		Path:   projectPath(projectID),
		Body:   request,
	})
	if err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}

	return project, nil
}

// Delete deletes an empty project.
func (c *ProjectsClient) Delete(ctx context.Context, projectID string) error {
	err := requireID(projectID, dtcloud.ErrProjectIDRequired)
	if err != nil {
		return err
	}

	_, err = c.httpClient.Delete(ctx, projectPath(projectID))
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	return nil
}
