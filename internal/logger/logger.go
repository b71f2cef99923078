// Package logger provides a structured, context-aware logger backed by log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Level is the minimum severity a Logger emits.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// LoggerInterface is the logging contract every component depends on.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// The c variants skip caller extra frames when resolving the source location.
	Debugc(ctx context.Context, caller int, msg string, args ...any)
	Infoc(ctx context.Context, caller int, msg string, args ...any)
	Warnc(ctx context.Context, caller int, msg string, args ...any)
	Errorc(ctx context.Context, caller int, msg string, args ...any)
}

// TraceIDFn extracts a correlation id from a context.
type TraceIDFn func(ctx context.Context) string

// Logger writes JSON records through slog.
type Logger struct {
	handler   slog.Handler
	traceIDFn TraceIDFn
}

var _ LoggerInterface = (*Logger)(nil)

// New constructs a Logger writing to w. When traceIDFn is nil the
// OpenTelemetry span in the context, if any, provides trace and span ids.
func New(w io.Writer, minLevel Level, serviceName string, traceIDFn TraceIDFn) *Logger {
	opts := slog.HandlerOptions{
		AddSource: true,
		Level:     minLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					a.Value = slog.StringValue(shortFile(source.File) + ":" + strconv.Itoa(source.Line))
				}
			}
			return a
		},
	}

	handler := slog.Handler(slog.NewJSONHandler(w, &opts))
	if serviceName != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", serviceName)})
	}

	return &Logger{
		handler:   handler,
		traceIDFn: traceIDFn,
	}
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelDebug, 3, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelInfo, 3, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelWarn, 3, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, LevelError, 3, msg, args...)
}

func (l *Logger) Debugc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelDebug, 3+caller, msg, args...)
}

func (l *Logger) Infoc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelInfo, 3+caller, msg, args...)
}

func (l *Logger) Warnc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelWarn, 3+caller, msg, args...)
}

func (l *Logger) Errorc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, LevelError, 3+caller, msg, args...)
}

func (l *Logger) write(ctx context.Context, level Level, skip int, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])

	if l.traceIDFn != nil {
		if id := l.traceIDFn(ctx); id != "" {
			r.AddAttrs(slog.String("trace_id", id))
		}
	} else if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	r.Add(args...)

	_ = l.handler.Handle(ctx, r)
}

func shortFile(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx == -1 {
		return path
	}
	idx = strings.LastIndexByte(path[:idx], '/')
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}
