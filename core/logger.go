package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel controls which messages a ProductionLogger emits.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLogLevel maps a configuration string onto a LogLevel. Unknown values
// default to info rather than failing startup.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ProductionLogger is the standard Logger implementation: leveled, structured,
// JSON for log aggregation or text for local development. It implements
// ComponentAwareLogger so subsystems can tag their own lines.
type ProductionLogger struct {
	level          LogLevel
	serviceName    string
	component      string
	format         string
	output         io.Writer
	metricsEnabled bool
	mu             sync.Mutex
}

// NewProductionLogger creates a logger from configuration. Development mode
// with pretty logs forces text format; debug logging forces debug level.
// The default component is "resilience/core" until WithComponent derives a
// child for another subsystem.
func NewProductionLogger(cfg LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	level := ParseLogLevel(cfg.Level)
	if dev.DebugLogging {
		level = LogLevelDebug
	}

	format := cfg.Format
	if dev.Enabled && dev.PrettyLogs {
		format = "text"
	}
	if format == "" {
		format = "json"
	}

	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	return &ProductionLogger{
		level:          level,
		serviceName:    serviceName,
		component:      "resilience/core",
		format:         format,
		output:         output,
		metricsEnabled: true,
	}
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, fields)
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(LogLevelError, msg, fields)
	if l.metricsEnabled {
		if registry := GetGlobalMetricsRegistry(); registry != nil {
			registry.Counter("nextprop.log.errors", "component", l.component)
		}
	}
}

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, l.contextFields(ctx, fields))
}

func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.Error(msg, l.contextFields(ctx, fields))
}

func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, l.contextFields(ctx, fields))
}

func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, l.contextFields(ctx, fields))
}

// contextFields merges request-scoped fields from the context into the
// caller's fields. Caller fields win on key collision.
func (l *ProductionLogger) contextFields(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	rc := RequestContextFromContext(ctx)
	if rc == nil {
		return fields
	}
	merged := make(map[string]interface{}, len(fields)+3)
	merged["http_method"] = rc.Method
	merged["http_url"] = rc.URL
	if rc.UserID != "" {
		merged["user_id"] = rc.UserID
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// WithComponent returns a new logger emitting the same configuration with a
// different component tag. The receiver is not modified.
func (l *ProductionLogger) WithComponent(component string) Logger {
	return &ProductionLogger{
		level:          l.level,
		serviceName:    l.serviceName,
		component:      component,
		format:         l.format,
		output:         l.output,
		metricsEnabled: l.metricsEnabled,
	}
}

func (l *ProductionLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	if l.format == "json" {
		l.writeJSON(level, msg, fields)
		return
	}
	l.writeText(level, msg, fields)
}

func (l *ProductionLogger) writeJSON(level LogLevel, msg string, fields map[string]interface{}) {
	entry := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		entry[k] = v
	}
	// Reserved keys win over caller fields
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["service"] = l.serviceName
	entry["component"] = l.component
	entry["message"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		// Fall back to text so the line is not lost
		l.writeText(level, msg, map[string]interface{}{"marshal_error": err.Error()})
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.output, string(data))
}

func (l *ProductionLogger) writeText(level LogLevel, msg string, fields map[string]interface{}) {
	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] [")
	b.WriteString(l.serviceName)
	b.WriteString("] ")
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.output, b.String())
}

// createComponentLogger derives a component-tagged child from base when the
// base supports it, otherwise returns base unchanged. Used by constructors
// that receive a caller's logger and want their own component tag.
func createComponentLogger(base Logger, component string) Logger {
	if cal, ok := base.(ComponentAwareLogger); ok {
		return cal.WithComponent(component)
	}
	return base
}
