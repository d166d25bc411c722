package commands

import (
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/fivetwenty-io/dtcloud/pkg/dtcloud"
	"github.com/spf13/viper"
)

// CharmLogger adapts a charmbracelet logger to dtcloud.Logger.
type CharmLogger struct {
	logger *log.Logger
}

var _ dtcloud.Logger = (*CharmLogger)(nil)

// NewCharmLogger writes to out. Debug messages are shown when verbose is set.
func NewCharmLogger(out io.Writer, verbose bool) *CharmLogger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	return &CharmLogger{
		logger: log.NewWithOptions(out, log.Options{
			Level:           level,
			Prefix:          "dtcloud",
			ReportTimestamp: true,
		}),
	}
}

// newCLILogger builds the logger used by commands, on stderr.
func newCLILogger() *CharmLogger {
	return NewCharmLogger(os.Stderr, viper.GetBool("verbose"))
}

// Debug logs a debug message.
func (l *CharmLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, keyvals(fields)...)
}

// Info logs an info message.
func (l *CharmLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, keyvals(fields)...)
}

// Warn logs a warning.
func (l *CharmLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, keyvals(fields)...)
}

// Error logs an error.
func (l *CharmLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, keyvals(fields)...)
}

// keyvals flattens fields in key order so output is stable.
func keyvals(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	pairs := make([]interface{}, 0, len(fields)*2)
	for _, key := range keys {
		pairs = append(pairs, key, fields[key])
	}

	return pairs
}
