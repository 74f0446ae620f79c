package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for logging operations
var (
	// LogEntriesTotal counts log entries by level
	LogEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "framesift_log_entries_total",
			Help: "Total number of log entries by level",
		},
		[]string{"level"},
	)

	// LogErrorsTotal counts error-level log entries specifically
	LogErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "framesift_log_errors_total",
			Help: "Total number of error log entries",
		},
	)
)

type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// ParseLevel maps a config string to a LogLevel; unknown strings mean info.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// LoggerConfig holds logger configuration options
type LoggerConfig struct {
	Level LogLevel
	// EnableConsole selects human-readable console output instead of JSON
	EnableConsole bool
	Component     string
	// Output overrides the destination (defaults to os.Stdout)
	Output io.Writer
}

// DefaultLoggerConfig returns the default logger configuration
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:         InfoLevel,
		EnableConsole: false,
	}
}

// StructuredLogger is a zerolog-backed logger with level gating and a
// Prometheus hook counting emitted entries.
type StructuredLogger struct {
	logger zerolog.Logger
	level  LogLevel
}

func NewStructuredLogger(config LoggerConfig) *StructuredLogger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	if config.EnableConsole {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger().
		Level(getZerologLevel(config.Level)).
		Hook(metricsHook{})
	if config.Component != "" {
		logger = logger.With().Str("component", config.Component).Logger()
	}

	return &StructuredLogger{
		logger: logger,
		level:  config.Level,
	}
}

// DiscardLogger returns a logger that drops all output (useful for tests)
func DiscardLogger() *StructuredLogger {
	return &StructuredLogger{
		logger: zerolog.New(io.Discard).Level(zerolog.Disabled),
		level:  FatalLevel,
	}
}

func getZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *StructuredLogger) emit(ctx context.Context, event *zerolog.Event, msg string, fields []map[string]any) {
	if len(fields) > 0 {
		event = event.Fields(mergeFields(fields))
	}
	if ctx != nil {
		if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
			event = event.Str("trace_id", traceID)
		}
	}
	event.Msg(msg)
}

func (l *StructuredLogger) Debug(ctx context.Context, msg string, fields ...map[string]any) {
	if l.level <= DebugLevel {
		l.emit(ctx, l.logger.Debug(), msg, fields)
	}
}

func (l *StructuredLogger) Info(ctx context.Context, msg string, fields ...map[string]any) {
	if l.level <= InfoLevel {
		l.emit(ctx, l.logger.Info(), msg, fields)
	}
}

func (l *StructuredLogger) Warn(ctx context.Context, msg string, fields ...map[string]any) {
	if l.level <= WarnLevel {
		l.emit(ctx, l.logger.Warn(), msg, fields)
	}
}

func (l *StructuredLogger) Error(ctx context.Context, msg string, fields ...map[string]any) {
	if l.level <= ErrorLevel {
		l.emit(ctx, l.logger.Error(), msg, fields)
	}
}

func (l *StructuredLogger) Fatal(ctx context.Context, msg string, fields ...map[string]any) {
	l.emit(ctx, l.logger.Fatal(), msg, fields)
}

// WithComponent returns a child logger tagged with a component name
func (l *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{
		logger: l.logger.With().Str("component", component).Logger(),
		level:  l.level,
	}
}

// WithFields returns a child logger carrying fixed fields
func (l *StructuredLogger) WithFields(fields map[string]any) *StructuredLogger {
	return &StructuredLogger{
		logger: l.logger.With().Fields(fields).Logger(),
		level:  l.level,
	}
}

type traceIDKey struct{}

// WithTraceID tags ctx so log lines emitted under it carry the trace id
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFrom extracts the trace id set by WithTraceID, if any
func TraceIDFrom(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(traceIDKey{}).(string)
	return traceID, ok
}

func mergeFields(fields []map[string]any) map[string]any {
	result := make(map[string]any, len(fields))
	for _, fieldMap := range fields {
		for k, v := range fieldMap {
			result[k] = v
		}
	}
	return result
}

// metricsHook increments Prometheus counters for every emitted entry
type metricsHook struct{}

func (metricsHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level == zerolog.Disabled || level == zerolog.NoLevel {
		return
	}
	LogEntriesTotal.WithLabelValues(level.String()).Inc()
	if level >= zerolog.ErrorLevel {
		LogErrorsTotal.Inc()
	}
}
