package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// Logger defines the minimal logging interface used throughout swarmdeck.
// Callers may provide their own implementation or use the slog adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards all log messages. It is the default so the core never
// forces a logging dependency on callers.
type NoOpLogger struct{}

// Debug discards the message.
func (NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (NoOpLogger) Info(string, ...any) {}

// Warn discards the message.
func (NoOpLogger) Warn(string, ...any) {}

// Error discards the message.
func (NoOpLogger) Error(string, ...any) {}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger { return &SlogAdapter{Logger: logger} }

// NewDefaultSlogLogger creates a Logger backed by slog.Default().
func NewDefaultSlogLogger() Logger { return NewSlogAdapter(slog.Default()) }

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// Config configures construction of an OrchestratorLogger.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
}

// DefaultConfig returns a JSON, info-level configuration writing to stdout.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// OrchestratorLogger wraps slog with contextual cloning helpers and domain
// logging methods. With* methods return cheap copies; the receiver is never
// mutated, so a shared base logger can be specialized per session or worker.
type OrchestratorLogger struct {
	logger    *slog.Logger
	component string
	sessionID string
	workerID  string
}

// NewLogger builds an OrchestratorLogger from cfg (or defaults if nil).
func NewLogger(cfg *Config) *OrchestratorLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &OrchestratorLogger{logger: slog.New(handler), component: cfg.Component}
}

// WithComponent returns a copy tagged with the logical component
// (manager, dispatch, executor, ...).
func (l *OrchestratorLogger) WithComponent(c string) *OrchestratorLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithSession returns a copy tagged with a session id.
func (l *OrchestratorLogger) WithSession(sessionID string) *OrchestratorLogger {
	nl := *l
	nl.sessionID = sessionID
	return &nl
}

// WithWorker returns a copy tagged with a worker id.
func (l *OrchestratorLogger) WithWorker(workerID string) *OrchestratorLogger {
	nl := *l
	nl.workerID = workerID
	return &nl
}

func (l *OrchestratorLogger) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+3)
	if l.component != "" {
		out = append(out, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		out = append(out, slog.String("session_id", l.sessionID))
	}
	if l.workerID != "" {
		out = append(out, slog.String("worker_id", l.workerID))
	}
	return append(out, extra...)
}

func (l *OrchestratorLogger) log(level slog.Level, msg string, args ...any) {
	l.logger.LogAttrs(context.Background(), level, msg, append(l.attrs(), argsToAttrs(args)...)...)
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

// Debug logs at debug level.
func (l *OrchestratorLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *OrchestratorLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *OrchestratorLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *OrchestratorLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// ErrorWithStack logs an error plus a runtime stack snapshot. Used for
// invariant violations that must be loud.
func (l *OrchestratorLogger) ErrorWithStack(err error, msg string) {
	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, l.attrs(
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)),
		slog.String("stack_trace", string(stack[:n])),
	)...)
}

// LogSpawn records a worker spawn.
func (l *OrchestratorLogger) LogSpawn(workerID, task string, model string) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "worker spawned", l.attrs(
		slog.String("worker_id", workerID),
		slog.String("task", task),
		slog.String("model", model),
	)...)
}

// LogWorkerEvent records one delta/complete/error event for a worker.
func (l *OrchestratorLogger) LogWorkerEvent(workerID, kind string, success bool, err error) {
	attrs := []slog.Attr{
		slog.String("worker_id", workerID),
		slog.String("kind", kind),
		slog.Bool("success", success),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelDebug
	msg := "worker event"
	if !success {
		level = slog.LevelError
		msg = "worker event rejected"
	}
	l.logger.LogAttrs(context.Background(), level, msg, l.attrs(attrs...)...)
}

// LogCostUpdate records an aggregate accounting update for a session.
func (l *OrchestratorLogger) LogCostUpdate(sessionID string, inputTokens, outputTokens int, totalCost float64, dur time.Duration) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "session cost updated", l.attrs(
		slog.String("session_id", sessionID),
		slog.Int("total_input_tokens", inputTokens),
		slog.Int("total_output_tokens", outputTokens),
		slog.Float64("total_cost_usd", totalCost),
		slog.Duration("duration", dur),
	)...)
}
