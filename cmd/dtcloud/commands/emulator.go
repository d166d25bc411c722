package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// emulatedNameLength is how much of a UUID goes into a generated device name.
const emulatedNameLength = 8

// NewEmulatorCommand creates the emulator command group.
func NewEmulatorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "emulator",
		Aliases: []string{"emu"},
		Short:   "Drive emulated devices",
		Long:    "Create and delete emulated devices and make them publish events",
	}

	cmd.AddCommand(newEmulatorCreateCommand())
	cmd.AddCommand(newEmulatorPublishCommand())
	cmd.AddCommand(newEmulatorDeleteCommand())

	return cmd
}

func newEmulatorCreateCommand() *cobra.Command {
	var (
		deviceType string
		name       string
		labels     []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an emulated device",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProject()
			if err != nil {
				return err
			}

			deviceLabels, err := parseLabels(labels)
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			device, err := client.Emulator().CreateDevice(cmd.Context(), projectID, newEmulatedDevice(deviceType, name, deviceLabels))
			if err != nil {
				return fmt.Errorf("failed to create emulated device: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), device, func(out io.Writer) error {
				return renderProperties(out, [][]string{
					{"ID", device.ID()},
					{"Type", device.Type},
					{"Labels", formatLabels(device.Labels)},
				})
			})
		},
	}

	cmd.Flags().StringVar(&deviceType, "type", dtcloud.DeviceTypeTemperature, "device type")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: generated)")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "label as key=value, repeatable")

	return cmd
}

// newEmulatedDevice builds the create request, generating a display name when
// none was given.
func newEmulatedDevice(deviceType, name string, labels map[string]string) *dtcloud.EmulatedDevice {
	if labels == nil {
		labels = make(map[string]string)
	}

	if name == "" {
		name = "emulated-" + uuid.NewString()[:emulatedNameLength]
	}

	labels["name"] = name

	return &dtcloud.EmulatedDevice{Type: deviceType, Labels: labels}
}

func newEmulatorPublishCommand() *cobra.Command {
	var (
		eventType string
		value     string
	)

	cmd := &cobra.Command{
		Use:   "publish DEVICE_ID",
		Short: "Publish an event from an emulated device",
		Long: `Publish an event from an emulated device.

--value is the reading for temperature, humidity (relative humidity),
touchCount, objectPresentCount, batteryStatus and networkStatus, and the state
(PRESENT or NOT_PRESENT) for objectPresent and waterPresent. touch needs none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := eventFromFlags(eventType, value)
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

			err = client.Emulator().PublishEvent(cmd.Context(), projectID, args[0], data)
			if err != nil {
				return fmt.Errorf("failed to publish event: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Published %s event from %s\n", eventType, args[0])

			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", dtcloud.EventTypeTouch, "event type")
	cmd.Flags().StringVar(&value, "value", "", "event value")

	return cmd
}

// eventFromFlags builds the payload of a published event.
func eventFromFlags(eventType, value string) (dtcloud.EventData, error) {
	if eventType == dtcloud.EventTypeTouch {
		return dtcloud.Touch{}, nil
	}

	if !dtcloud.IsKnownEventType(eventType) {
		return nil, fmt.Errorf("%w: %s", constants.ErrUnsupportedEvent, eventType)
	}

	if value == "" {
		return nil, fmt.Errorf("%w: %s", constants.ErrEventValueMissing, eventType)
	}

	switch eventType {
	case dtcloud.EventTypeTemperature:
		number, err := parseFloat(value)
		if err != nil {
			return nil, err
		}

		return dtcloud.Temperature{Value: number}, nil
	case dtcloud.EventTypeHumidity:
		number, err := parseFloat(value)
		if err != nil {
			return nil, err
		}

		return dtcloud.Humidity{RelativeHumidity: number}, nil
	case dtcloud.EventTypeObjectPresent:
		state, err := parseState(value)
		if err != nil {
			return nil, err
		}

		return dtcloud.ObjectPresent{State: state}, nil
	case dtcloud.EventTypeWaterPresent:
		state, err := parseState(value)
		if err != nil {
			return nil, err
		}

		return dtcloud.WaterPresent{State: state}, nil
	case dtcloud.EventTypeTouchCount, dtcloud.EventTypeObjectPresentCount,
		dtcloud.EventTypeBatteryStatus, dtcloud.EventTypeNetworkStatus:
		return countEvent(eventType, value)
	default:
		return nil, fmt.Errorf("%w: %s", constants.ErrUnsupportedEvent, eventType)
	}
}

func countEvent(eventType, value string) (dtcloud.EventData, error) {
	number, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --value %q: %w", value, err)
	}

	switch eventType {
	case dtcloud.EventTypeTouchCount:
		return dtcloud.TouchCount{Total: number}, nil
	case dtcloud.EventTypeObjectPresentCount:
		return dtcloud.ObjectPresentCount{Total: number}, nil
	case dtcloud.EventTypeBatteryStatus:
		return dtcloud.BatteryStatus{Percentage: number}, nil
	default:
		return dtcloud.NetworkStatus{SignalStrength: number}, nil
	}
}

func parseFloat(value string) (float64, error) {
	number, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --value %q: %w", value, err)
	}

	return number, nil
}

func parseState(value string) (string, error) {
	switch value {
	case dtcloud.StatePresent, dtcloud.StateNotPresent:
		return value, nil
	default:
		return "", fmt.Errorf("invalid --value %q: want %s or %s", value, dtcloud.StatePresent, dtcloud.StateNotPresent) //nolint:err113
	}
}

func newEmulatorDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete DEVICE_ID",
		Short: "Delete an emulated device",
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

			err = client.Emulator().DeleteDevice(cmd.Context(), projectID, args[0])
			if err != nil {
				return fmt.Errorf("failed to delete emulated device: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Emulated device %s deleted\n", args[0])

			return nil
		},
	}
}
