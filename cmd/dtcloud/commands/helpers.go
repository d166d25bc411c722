package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fivetwenty-io/dtcloud/internal/constants"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// JSON and YAML indentation.
const defaultIndent = 2

// dateTimeFormat is used for timestamps in tables.
const dateTimeFormat = "2006-01-02 15:04:05"

// outputFormat returns the requested output format, validated.
func outputFormat() (string, error) {
	output := viper.GetString("output")
	switch output {
	case "", constants.FormatTable:
		return constants.FormatTable, nil
	case constants.FormatJSON, constants.FormatYAML:
		return output, nil
	default:
		return "", fmt.Errorf("%w: %s", constants.ErrInvalidOutput, output)
	}
}

// StandardJSONRenderer writes data as indented JSON.
func StandardJSONRenderer[T any](out io.Writer, data T) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", strings.Repeat(" ", defaultIndent))

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

// StandardYAMLRenderer writes data as YAML.
func StandardYAMLRenderer[T any](out io.Writer, data T) error {
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(defaultIndent)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return encoder.Close()
}

// renderOutput writes data in the requested format, falling back to table.
func renderOutput[T any](out io.Writer, data T, table func(io.Writer) error) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return StandardJSONRenderer(out, data)
	case constants.FormatYAML:
		return StandardYAMLRenderer(out, data)
	default:
		return table(out)
	}
}

// renderTable writes rows under header.
func renderTable(out io.Writer, header []string, rows [][]string) error {
	columns := make([]any, 0, len(header))
	for _, column := range header {
		columns = append(columns, column)
	}

	table := tablewriter.NewWriter(out)
	table.Header(columns...)

	for _, row := range rows {
		_ = table.Append(row)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderProperties writes a two column Property/Value table.
func renderProperties(out io.Writer, rows [][]string) error {
	return renderTable(out, []string{"Property", "Value"}, rows)
}

// parseLabels turns key=value pairs into a map.
func parseLabels(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil //nolint:nilnil
	}

	labels := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidLabel, pair)
		}

		labels[key] = value
	}

	return labels, nil
}

// formatLabels renders labels sorted by key.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return constants.None
	}

	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+labels[key])
	}

	return strings.Join(parts, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return constants.NotAvailable
	}

	return t.Local().Format(dateTimeFormat)
}

func valueOrNA(value string) string {
	if value == "" {
		return constants.NotAvailable
	}

	return value
}

var titleCaser = cases.Title(language.English)

// eventTypeTitle turns "objectPresentCount" into "Object Present Count".
func eventTypeTitle(eventType string) string {
	var words []string

	start := 0

	for i, r := range eventType {
		if i > 0 && r >= 'A' && r <= 'Z' {
			words = append(words, eventType[start:i])
			start = i
		}
	}

	words = append(words, eventType[start:])

	return titleCaser.String(strings.Join(words, " "))
}

// summarizeEvent renders the payload of an event as one short line.
func summarizeEvent(data dtcloud.EventData) string {
	switch event := data.(type) {
	case dtcloud.Touch:
		return "touched"
	case dtcloud.Temperature:
		return fmt.Sprintf("%.2f °C", event.Value)
	case dtcloud.Humidity:
		return fmt.Sprintf("%.2f °C, %.1f %%RH", event.Temperature, event.RelativeHumidity)
	case dtcloud.ObjectPresent:
		return event.State
	case dtcloud.WaterPresent:
		return event.State
	case dtcloud.ObjectPresentCount:
		return fmt.Sprintf("count %d", event.Total)
	case dtcloud.TouchCount:
		return fmt.Sprintf("count %d", event.Total)
	case dtcloud.NetworkStatus:
		return fmt.Sprintf("signal %d%%", event.SignalStrength)
	case dtcloud.BatteryStatus:
		return fmt.Sprintf("battery %d%%", event.Percentage)
	case dtcloud.ConnectionStatus:
		return event.Connection
	case dtcloud.LabelsChanged:
		return fmt.Sprintf("%d added, %d modified, %d removed", len(event.Added), len(event.Modified), len(event.Removed))
	case dtcloud.EthernetStatus:
		return event.IPAddress
	case dtcloud.CellularStatus:
		return fmt.Sprintf("signal %d%%", event.SignalStrength)
	default:
		return constants.NotAvailable
	}
}
