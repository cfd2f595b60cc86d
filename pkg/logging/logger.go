// Package logging provides structured logging for the notetaker service.
// It wraps zerolog behind a small Logger interface so that pipeline components
// can attach meeting and stage context without depending on zerolog directly.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ContextKey type for context values to avoid collisions.
type ContextKey string

// MeetingIDKey is the context key WithContext reads the meeting id from.
const MeetingIDKey ContextKey = "meeting_id"

// Level represents logging severity levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error).
	Level Level

	// ServiceName is included in all log entries.
	ServiceName string

	// JSONFormat enables JSON output when true, human-readable when false.
	JSONFormat bool

	// Output sets the writer for logs (defaults to os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a Config suitable for interactive use.
func DefaultConfig() *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: "notetaker",
		JSONFormat:  false,
		Output:      os.Stderr,
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a new Logger with the given fields attached to all subsequent logs.
	With(fields ...Field) Logger

	// WithContext returns a new Logger carrying the span's trace id and the
	// meeting id found in ctx.
	WithContext(ctx context.Context) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field with the given key and value.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates a Field for an error.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Meeting creates the meeting_id field used across the pipeline.
func Meeting(id string) Field {
	return Field{Key: "meeting_id", Value: id}
}

// ContextWithMeeting returns ctx tagged with a meeting id for WithContext.
func ContextWithMeeting(ctx context.Context, meetingID string) context.Context {
	return context.WithValue(ctx, MeetingIDKey, meetingID)
}

type logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new Logger with the given configuration.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return &logger{zl: zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().Str("service_name", cfg.ServiceName).
		Logger()}
}

// parseLevel maps a configured level onto zerolog. Unknown and empty levels
// log at info.
func parseLevel(l Level) zerolog.Level {
	lvl, err := zerolog.ParseLevel(string(l))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *logger) Debug(msg string, fields ...Field) {
	l.zl.Debug().Fields(fieldMap(fields)).Msg(msg)
}

func (l *logger) Info(msg string, fields ...Field) {
	l.zl.Info().Fields(fieldMap(fields)).Msg(msg)
}

func (l *logger) Warn(msg string, fields ...Field) {
	l.zl.Warn().Fields(fieldMap(fields)).Msg(msg)
}

func (l *logger) Error(msg string, fields ...Field) {
	l.zl.Error().Fields(fieldMap(fields)).Msg(msg)
}

func (l *logger) With(fields ...Field) Logger {
	return &logger{zl: l.zl.With().Fields(fieldMap(fields)).Logger()}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	zctx := l.zl.With()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		zctx = zctx.Str("trace_id", sc.TraceID().String())
	}
	if meetingID, ok := ctx.Value(MeetingIDKey).(string); ok && meetingID != "" {
		zctx = zctx.Str("meeting_id", meetingID)
	}
	return &logger{zl: zctx.Logger()}
}

// fieldMap flattens fields for zerolog, which renders error, time and
// duration values natively.
func fieldMap(fields []Field) map[string]interface{} {
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

// NewNopLogger returns a logger that discards all output. Components use it
// until a real logger is injected.
func NewNopLogger() Logger {
	return &logger{zl: zerolog.Nop()}
}
