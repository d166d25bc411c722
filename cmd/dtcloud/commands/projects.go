package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/cobra"
)

// NewProjectsCommand creates the projects command group.
func NewProjectsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project", "proj"},
		Short:   "Manage projects",
		Long:    "List, inspect, create and delete projects",
	}

	cmd.AddCommand(newProjectsListCommand())
	cmd.AddCommand(newProjectsGetCommand())
	cmd.AddCommand(newProjectsCreateCommand())
	cmd.AddCommand(newProjectsDeleteCommand())

	return cmd
}

func newProjectsListCommand() *cobra.Command {
	var (
		organization string
		query        string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Long:  "List all projects the caller has access to, optionally within one organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			projects, err := client.Projects().List(cmd.Context(), &dtcloud.ProjectListOptions{
				OrganizationID: organization,
				Query:          query,
			})
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), projects, func(out io.Writer) error {
				return renderProjectTable(out, projects)
			})
		},
	}

	cmd.Flags().StringVar(&organization, "organization", "", "only list projects of this organization ID")
	cmd.Flags().StringVar(&query, "query", "", "free text filter")

	return cmd
}

func newProjectsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [PROJECT_ID]",
		Short: "Get project details",
		Long:  "Show one project; defaults to the configured project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := projectArg(args)
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			project, err := client.Projects().Get(cmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), project, func(out io.Writer) error {
				return renderProperties(out, [][]string{
					{"ID", project.ID()},
					{"Display Name", project.DisplayName},
					{"Organization", valueOrNA(project.OrganizationDisplayName)},
					{"Organization ID", project.OrganizationID()},
					{"Sensors", strconv.Itoa(project.SensorCount)},
					{"Cloud Connectors", strconv.Itoa(project.CloudConnectorCount)},
					{"Inventory", strconv.FormatBool(project.Inventory)},
				})
			})
		},
	}
}

func newProjectsCreateCommand() *cobra.Command {
	var organization string

	cmd := &cobra.Command{
		Use:   "create DISPLAY_NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			project, err := client.Projects().Create(cmd.Context(), &dtcloud.ProjectCreateRequest{
				Organization: organization,
				DisplayName:  args[0],
			})
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), project, func(out io.Writer) error {
				return renderProjectTable(out, []dtcloud.Project{*project})
			})
		},
	}

	cmd.Flags().StringVar(&organization, "organization", "", "organization ID that owns the project")
	_ = cmd.MarkFlagRequired("organization")

	return cmd
}

func newProjectsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROJECT_ID",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			err = client.Projects().Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Project %s deleted\n", args[0])

			return nil
		},
	}
}

// projectArg takes the project from the first argument or the usual sources.
func projectArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	return resolveProject()
}

func renderProjectTable(out io.Writer, projects []dtcloud.Project) error {
	if len(projects) == 0 {
		_, _ = io.WriteString(out, "No projects found\n")

		return nil
	}

	rows := make([][]string, 0, len(projects))
	for _, project := range projects {
		rows = append(rows, []string{
			project.ID(),
			project.DisplayName,
			valueOrNA(project.OrganizationDisplayName),
			strconv.Itoa(project.SensorCount),
			strconv.Itoa(project.CloudConnectorCount),
		})
	}

	return renderTable(out, []string{"ID", "Display Name", "Organization", "Sensors", "Cloud Connectors"}, rows)
}
