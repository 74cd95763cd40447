// Package logger builds charmbracelet/log loggers for the censor service.
package logger

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// New creates a new default charm log.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stdout, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// NewWithConfig creates a new charm log with custom config
func NewWithConfig(w io.Writer, prefix string, level log.Level, caller bool, showTimestamp bool, fmt log.Formatter) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportCaller:    caller,
		ReportTimestamp: showTimestamp,
		Formatter:       fmt,
	})
}

// ParseFormatter maps "text", "json" and "logfmt" to a formatter. Unknown names fall back to text.
func ParseFormatter(name string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// Adapter exposes a charm logger through the field-map logger interface used by core.
type Adapter struct {
	l *log.Logger
}

// NewAdapter wraps l. A nil l uses the package default logger.
func NewAdapter(l *log.Logger) *Adapter {
	if l == nil {
		l = log.Default()
	}
	return &Adapter{l: l}
}

func (a *Adapter) Debug(msg string, fields map[string]any) { a.l.Debug(msg, keyvals(fields)...) }
func (a *Adapter) Info(msg string, fields map[string]any)  { a.l.Info(msg, keyvals(fields)...) }
func (a *Adapter) Warn(msg string, fields map[string]any)  { a.l.Warn(msg, keyvals(fields)...) }
func (a *Adapter) Error(msg string, fields map[string]any) { a.l.Error(msg, keyvals(fields)...) }

// keyvals flattens fields in key order.
func keyvals(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, fields[k])
	}
	return out
}
