package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/internal/relay"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const relayPublishTimeout = 5 * time.Second

// streamFlags collects the flags of the stream command.
type streamFlags struct {
	deviceIDs    []string
	deviceTypes  []string
	eventTypes   []string
	labels       []string
	reconnect    bool
	count        int
	natsURL      string
	natsPrefix   string
	kafkaBrokers []string
	kafkaTopic   string
}

// NewStreamCommand creates the stream command.
func NewStreamCommand() *cobra.Command {
	flags := &streamFlags{}

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Follow live device events",
		Long: `Follow the live event stream of a project until interrupted.

Events are printed one per line. With --nats-url or --kafka-brokers every
event is also relayed to the broker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runStream(ctx, cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.deviceIDs, "device", nil, "device IDs to follow")
	cmd.Flags().StringSliceVar(&flags.deviceTypes, "type", nil, "device types to follow")
	cmd.Flags().StringSliceVar(&flags.eventTypes, "event-type", nil, "event types to follow")
	cmd.Flags().StringArrayVar(&flags.labels, "label", nil, "label filter as key=value, repeatable")
	cmd.Flags().BoolVar(&flags.reconnect, "reconnect", true, "reconnect after the connection drops")
	cmd.Flags().IntVar(&flags.count, "count", 0, "stop after this many events (0 = no limit)")
	cmd.Flags().StringVar(&flags.natsURL, "nats-url", "", "relay events to this NATS server")
	cmd.Flags().StringVar(&flags.natsPrefix, "nats-prefix", relay.DefaultSubjectPrefix, "NATS subject prefix")
	cmd.Flags().StringSliceVar(&flags.kafkaBrokers, "kafka-brokers", nil, "relay events to these Kafka brokers")
	cmd.Flags().StringVar(&flags.kafkaTopic, "kafka-topic", relay.DefaultTopic, "Kafka topic")

	return cmd
}

func runStream(ctx context.Context, out io.Writer, flags *streamFlags) error {
	projectID, err := resolveProject()
	if err != nil {
		return err
	}

	labelFilters, err := parseLabels(flags.labels)
	if err != nil {
		return err
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}

	client, err := CreateClient(ctx)
	if err != nil {
		return err
	}

	logger := newCLILogger()

	publishers, err := buildPublishers(flags)
	if err != nil {
		return err
	}

	var forwarder *relay.Relay
	if len(publishers) > 0 {
		forwarder = relay.New(relay.Options{
			Source:         "dtcloud-cli",
			PublishTimeout: relayPublishTimeout,
			Logger:         logger,
			OnError: func(err error) {
				logger.Warn("Relay publish failed", map[string]interface{}{"error": err.Error()})
			},
		}, publishers...)

		defer func() { _ = forwarder.Close() }()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printer := newEventPrinter(out, format)
	received := 0

	var lastErr error

	handlers := &dtcloud.EventHandlers{
		OnEvent: func(event dtcloud.DeviceEvent) {
			printer.print(event)

			if forwarder != nil {
				_ = forwarder.Forward(ctx, event)
			}

			received++
			if flags.count > 0 && received >= flags.count {
				cancel()
			}
		},
		OnError: func(err error) {
			lastErr = err
			logger.Warn("Stream error", map[string]interface{}{"error": err.Error()})
		},
		OnStateChange: func(state dtcloud.StreamState) {
			logger.Debug("Stream state changed", map[string]interface{}{"state": state.String()})
		},
	}

	sub, err := client.Streams().Subscribe(ctx, projectID, &dtcloud.StreamOptions{
		DeviceIDs:    flags.deviceIDs,
		DeviceTypes:  flags.deviceTypes,
		EventTypes:   flags.eventTypes,
		LabelFilters: labelFilters,
		Reconnect:    flags.reconnect,
	}, handlers)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	<-sub.Done()

	if forwarder != nil {
		published, failed := forwarder.Stats()
		logger.Info("Relay finished", map[string]interface{}{"published": published, "failed": failed})
	}

	// Interrupt and --count end the stream through the context.
	if ctx.Err() != nil {
		return nil
	}

	return lastErr
}

// buildPublishers connects to the requested brokers.
func buildPublishers(flags *streamFlags) ([]relay.Publisher, error) {
	var publishers []relay.Publisher

	if flags.natsURL != "" {
		publisher, err := relay.DialNATS(flags.natsURL, flags.natsPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}

		publishers = append(publishers, publisher)
	}

	if len(flags.kafkaBrokers) > 0 {
		publishers = append(publishers, relay.NewKafkaPublisher(relay.NewKafkaWriter(flags.kafkaBrokers, flags.kafkaTopic)))
	}

	return publishers, nil
}

// eventPrinter writes streamed events as they arrive.
type eventPrinter struct {
	mutex  sync.Mutex
	out    io.Writer
	format string
	json   *json.Encoder
	yaml   *yaml.Encoder
}

func newEventPrinter(out io.Writer, format string) *eventPrinter {
	printer := &eventPrinter{out: out, format: format}

	switch format {
	case constants.FormatJSON:
		printer.json = json.NewEncoder(out)
	case constants.FormatYAML:
		printer.yaml = yaml.NewEncoder(out)
	}

	return printer
}

func (p *eventPrinter) print(event dtcloud.DeviceEvent) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var err error

	switch p.format {
	case constants.FormatJSON:
		err = p.json.Encode(event)
	case constants.FormatYAML:
		err = p.yaml.Encode(event)
	default:
		_, err = fmt.Fprintf(p.out, "%-19s  %-12s  %-22s  %s\n",
			formatTime(event.Timestamp),
			event.DeviceID,
			eventTypeTitle(event.EventType),
			summarizeEvent(event.Data),
		)
	}

	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		_, _ = fmt.Fprintf(os.Stderr, "failed to print event: %v\n", err)
	}
}
