package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/cobra"
)

// NewEventsCommand creates the events command group.
func NewEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "events",
		Aliases: []string{"event"},
		Short:   "Read device events",
		Long:    "Read the stored event history of a device",
	}

	cmd.AddCommand(newEventsHistoryCommand())

	return cmd
}

func newEventsHistoryCommand() *cobra.Command {
	var (
		eventTypes []string
		since      time.Duration
		start      string
		end        string
	)

	cmd := &cobra.Command{
		Use:   "history DEVICE_ID",
		Short: "Show the event history of a device",
		Long: `Show the event history of a device, newest first.

The window is either --since (e.g. 24h) or --start/--end in RFC 3339.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := resolveProject()
			if err != nil {
				return err
			}

			opts, err := historyOptions(eventTypes, since, start, end, time.Now())
			if err != nil {
				return err
			}

			client, err := CreateClient(cmd.Context())
			if err != nil {
				return err
			}

			events, err := client.Events().List(cmd.Context(), projectID, args[0], opts)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}

			return renderOutput(cmd.OutOrStdout(), events, func(out io.Writer) error {
				return renderEventTable(out, events)
			})
		},
	}

	cmd.Flags().StringSliceVar(&eventTypes, "type", nil, "event types to include, e.g. temperature,touch")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this, e.g. 24h")
	cmd.Flags().StringVar(&start, "start", "", "window start (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "window end (RFC 3339)")
	cmd.MarkFlagsMutuallyExclusive("since", "start")

	return cmd
}

// historyOptions builds the event window from the command flags.
func historyOptions(eventTypes []string, since time.Duration, start, end string, now time.Time) (*dtcloud.EventListOptions, error) {
	opts := &dtcloud.EventListOptions{EventTypes: eventTypes}

	if since > 0 {
		opts.StartTime = now.Add(-since)
	}

	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return nil, fmt.Errorf("invalid --start: %w", err)
		}

		opts.StartTime = t
	}

	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return nil, fmt.Errorf("invalid --end: %w", err)
		}

		opts.EndTime = t
	}

	return opts, nil
}

func renderEventTable(out io.Writer, events []dtcloud.DeviceEvent) error {
	if len(events) == 0 {
		_, _ = io.WriteString(out, "No events found\n")

		return nil
	}

	rows := make([][]string, 0, len(events))
	for _, event := range events {
		rows = append(rows, []string{
			formatTime(event.Timestamp),
			eventTypeTitle(event.EventType),
			summarizeEvent(event.Data),
		})
	}

	return renderTable(out, []string{"Time", "Event", "Value"}, rows)
}
