package telemetry

import (
	"context"
	"io"
	"log/slog"
)

// LogLogger writes events through a slog.Logger. Text mode is meant for
// local development; JSON mode is meant for shipping to a log aggregator.
// Construct one with NewLogLogger rather than the zero value, so the
// underlying slog.Logger is always non-nil.
type LogLogger struct {
	logger *slog.Logger
}

// NewLogLogger builds a LogLogger writing to w. When jsonMode is false, a
// human-readable text handler is used; otherwise a JSON handler is used.
func NewLogLogger(w io.Writer, jsonMode bool) *LogLogger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if jsonMode {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &LogLogger{logger: slog.New(handler)}
}

// Log implements Logger.
func (l *LogLogger) Log(event Event) {
	attrs := make([]any, 0, 8+len(event.Meta)*2)
	attrs = append(attrs,
		slog.String("run_id", event.RunID),
		slog.Int("step", event.Step),
	)
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if event.Executor != "" {
		attrs = append(attrs, slog.String("executor", event.Executor))
	}
	for k, v := range event.Meta {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.Info(event.Message, attrs...)
}

// LogTracer emits a log line at span start and another at span end instead
// of a real trace backend; useful when OTel isn't configured but span
// boundaries are still worth recording.
type LogTracer struct {
	logger *slog.Logger
}

// NewLogTracer builds a LogTracer writing through the given slog.Logger.
func NewLogTracer(logger *slog.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

func (t *LogTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	fields := make([]any, 0, 2+len(attrs)*2)
	fields = append(fields, slog.String("span", name))
	for k, v := range attrs {
		fields = append(fields, slog.String(k, v))
	}
	t.logger.Info("span_start", fields...)
	return ctx, func(err error) {
		if err != nil {
			t.logger.Error("span_end", slog.String("span", name), slog.String("error", err.Error()))
			return
		}
		t.logger.Info("span_end", slog.String("span", name))
	}
}
