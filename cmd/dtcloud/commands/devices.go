package commands

import (
	"fmt"
	"io"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/cobra"
)

// NewDevicesCommand creates the devices command group.
func NewDevicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "devices",
		Aliases: []string{"device", "dev"},
		Short:   "Manage devices",
		Long:    "List and inspect the sensors and cloud connectors of a project, and edit their labels",
	}

	cmd.AddCommand(newDevicesListCommand())
	cmd.AddCommand(newDevicesGetCommand())
	cmd.AddCommand(newDevicesSetLabelCommand())
	cmd.AddCommand(newDevicesRemoveLabelCommand())
	cmd.AddCommand(newDevicesRenameCommand())

	return cmd
}

func newDevicesListCommand() *cobra.Command {
	var (
		deviceTypes []string
		labels      []string
		query       string
		orderBy     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices",
		Long:  "List every device of the project, following all pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProject()
			if err != nil {
				return err
			}

			labelFilters, err := parseLabels(labels)
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			devices, err := client.Devices().List(cmd.Context(), projectID, &dtcloud.DeviceListOptions{
				Query:        query,
				DeviceTypes:  deviceTypes,
				LabelFilters: labelFilters,
				OrderBy:      orderBy,
			})
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), devices, func(out io.Writer) error {
				return renderDeviceTable(out, devices)
			})
		},
	}

	cmd.Flags().StringSliceVar(&deviceTypes, "type", nil, "device types to include, e.g. temperature,touch")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "label filter as key=value, repeatable")
	cmd.Flags().StringVar(&query, "query", "", "free text filter")
	cmd.Flags().StringVar(&orderBy, "order-by", "", "sort field, e.g. reported.temperature.value")

	return cmd
}

func newDevicesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get DEVICE_ID",
		Short: "Get device details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProject()
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			device, err := client.Devices().Get(cmd.Context(), projectID, args[0])
			if err != nil {
				return fmt.Errorf("failed to get device: %w", err)
			}

			return renderDevice(cmd.OutOrStdout(), device)
		},
	}
}

func newDevicesSetLabelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-label DEVICE_ID KEY=VALUE",
		Short: "Set a label on a device",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := parseLabels(args[1:])
			if err != nil {
				return err
			}

			projectID, err := resolveProject()
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			var device *dtcloud.Device

			for key, value := range labels {
				device, err = client.Devices().SetLabel(cmd.Context(), projectID, args[0], key, value)
				if err != nil {
					return fmt.Errorf("failed to set label: %w", err)
				}
			}

			return renderDevice(cmd.OutOrStdout(), device)
		},
	}
}

func newDevicesRemoveLabelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-label DEVICE_ID KEY",
		Short: "Remove a label from a device",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProject()
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			device, err := client.Devices().RemoveLabel(cmd.Context(), projectID, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to remove label: %w", err)
			}

			return renderDevice(cmd.OutOrStdout(), device)
		},
	}
}

func newDevicesRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename DEVICE_ID NAME",
		Short: "Set the display name of a device",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProject()
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			device, err := client.Devices().SetDisplayName(cmd.Context(), projectID, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to rename device: %w", err)
			}

			return renderDevice(cmd.OutOrStdout(), device)
		},
	}
}

func renderDevice(out io.Writer, device *dtcloud.Device) error {
	return renderOutput(out, device, func(out io.Writer) error {
		return renderProperties(out, [][]string{
			{"ID", device.ID()},
			{"Display Name", valueOrNA(device.DisplayName())},
			{"Type", device.Type},
			{"Product Number", valueOrNA(device.ProductNumber)},
			{"Labels", formatLabels(device.Labels)},
			{"Latest", latestReading(device.Reported)},
		})
	})
}

func renderDeviceTable(out io.Writer, devices []dtcloud.Device) error {
	if len(devices) == 0 {
		_, _ = io.WriteString(out, "No devices found\n")

		return nil
	}

	rows := make([][]string, 0, len(devices))
	for _, device := range devices {
		rows = append(rows, []string{
			device.ID(),
			valueOrNA(device.DisplayName()),
			device.Type,
			latestReading(device.Reported),
		})
	}

	return renderTable(out, []string{"ID", "Name", "Type", "Latest"}, rows)
}

// latestReading summarizes the primary reported value of a device.
func latestReading(reported *dtcloud.Reported) string {
	if reported == nil {
		return constants.NotAvailable
	}

	var data dtcloud.EventData

	switch {
	case reported.Temperature != nil:
		data = *reported.Temperature
	case reported.Humidity != nil:
		data = *reported.Humidity
	case reported.ObjectPresent != nil:
		data = *reported.ObjectPresent
	case reported.WaterPresent != nil:
		data = *reported.WaterPresent
	case reported.TouchCount != nil:
		data = *reported.TouchCount
	case reported.ObjectPresentCount != nil:
		data = *reported.ObjectPresentCount
	case reported.ConnectionStatus != nil:
		data = *reported.ConnectionStatus
	case reported.Touch != nil:
		data = *reported.Touch
	default:
		return constants.NotAvailable
	}

	return summarizeEvent(data)
}
