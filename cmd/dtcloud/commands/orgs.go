package commands

import (
	"fmt"
	"io"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/cobra"
)

// NewOrgsCommand creates the organizations command group.
func NewOrgsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations", "org"},
		Short:   "Inspect organizations",
		Long:    "List organizations and show their permissions",
	}

	cmd.AddCommand(newOrgsListCommand())
	cmd.AddCommand(newOrgsGetCommand())
	cmd.AddCommand(newOrgsPermissionsCommand())

	return cmd
}

func newOrgsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Long:  "List all organizations the caller has access to",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			orgs, err := client.Organizations().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list organizations: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), orgs, func(out io.Writer) error {
				return renderOrganizationTable(out, orgs)
			})
		},
	}
}

func newOrgsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ORG_ID",
		Short: "Get organization details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			org, err := client.Organizations().Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get organization: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), org, func(out io.Writer) error {
				return renderProperties(out, [][]string{
					{"ID", org.ID()},
					{"Name", org.Name},
					{"Display Name", org.DisplayName},
				})
			})
		},
	}
}

func newOrgsPermissionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions ORG_ID",
		Short: "List the caller's permissions in an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			permissions, err := client.Organizations().ListPermissions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list permissions: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), permissions, func(out io.Writer) error {
				rows := make([][]string, 0, len(permissions))
				for _, permission := range permissions {
					rows = append(rows, []string{permission})
				}

				return renderTable(out, []string{"Permission"}, rows)
			})
		},
	}
}

func renderOrganizationTable(out io.Writer, orgs []dtcloud.Organization) error {
	if len(orgs) == 0 {
		_, _ = io.WriteString(out, "No organizations found\n")

		return nil
	}

	rows := make([][]string, 0, len(orgs))
	for _, org := range orgs {
		rows = append(rows, []string{org.ID(), org.DisplayName})
	}

	return renderTable(out, []string{"ID", "Display Name"}, rows)
}
