package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger emits structured JSON lines through slog. Derived loggers from
// WithField/WithFields/WithError share the underlying handler, so building
// them per call site is cheap.
type Logger struct {
	slogger *slog.Logger
	level   LogLevel
}

// NewLogger creates a logger writing JSON to output. A nil output falls
// back to stdout.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &Logger{slogger: slog.New(handler), level: level}
}

// WithField returns a logger that attaches key=value to every message
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{slogger: l.slogger.With(key, value), level: l.level}
}

// WithFields returns a logger carrying all given fields. Keys are attached
// in sorted order so output is stable.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return &Logger{slogger: l.slogger.With(args...), level: l.level}
}

// WithError attaches the error message under the "error" key. A nil error
// returns the receiver unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) { l.slogger.Debug(message) }
func (l *Logger) Info(message string)  { l.slogger.Info(message) }
func (l *Logger) Warn(message string)  { l.slogger.Warn(message) }
func (l *Logger) Error(message string) { l.slogger.Error(message) }

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores a request id in the context for downstream log lines
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom returns the request id stored in the context, or ""
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
