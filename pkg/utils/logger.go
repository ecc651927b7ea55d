// ABOUTME: zerolog-backed implementation of types.Logger/LogEvent/LogContext
// ABOUTME: Provides console, JSON, and console+file constructors; the CLI builds the console and console+file ones

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bastelbude1/tasker/pkg/types"
)

// LogLevel mirrors zerolog's levels without leaking the dependency into callers.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger wraps a zerolog.Logger to satisfy types.Logger.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger builds a human-readable console logger, colorized unless NO_COLOR
// is set in the environment.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	cw := zerolog.ConsoleWriter{Out: output, TimeFormat: "2006-01-02T15:04:05Z07:00"}
	if os.Getenv("NO_COLOR") != "" {
		cw.NoColor = true
	}
	zl := zerolog.New(cw).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewJSONLogger builds a machine-readable logger that writes JSON lines.
// No CLI flag selects it.
func NewJSONLogger(level LogLevel, output io.Writer) *Logger {
	zl := zerolog.New(output).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewFileLogger builds a console logger that also appends JSON lines to a
// log file, the persisted artifact the summary writers reference.
func NewFileLogger(level LogLevel, console io.Writer, file io.Writer) *Logger {
	cw := zerolog.ConsoleWriter{Out: console, TimeFormat: "2006-01-02T15:04:05Z07:00"}
	if os.Getenv("NO_COLOR") != "" {
		cw.NoColor = true
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(cw, file)).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// OpenLogFile creates dir if needed and opens the timestamped log file
// tasker_YYYYMMDD_HHMMSS.log inside it, returning the handle and its path.
func OpenLogFile(dir string, now time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("tasker_%s.log", now.Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	return f, path, nil
}

// ParseLevel maps the --log-level flag values onto LogLevel, defaulting to
// info for anything unrecognized.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) Debug() types.LogEvent { return &logEvent{ev: l.zl.Debug()} }
func (l *Logger) Info() types.LogEvent  { return &logEvent{ev: l.zl.Info()} }
func (l *Logger) Warn() types.LogEvent  { return &logEvent{ev: l.zl.Warn()} }
func (l *Logger) Error() types.LogEvent { return &logEvent{ev: l.zl.Error()} }
func (l *Logger) With() types.LogContext {
	return &logContext{ctx: l.zl.With()}
}

type logEvent struct {
	ev *zerolog.Event
}

func (e *logEvent) Str(key, value string) types.LogEvent {
	e.ev = e.ev.Str(key, value)
	return e
}

func (e *logEvent) Int(key string, value int) types.LogEvent {
	e.ev = e.ev.Int(key, value)
	return e
}

func (e *logEvent) Bool(key string, value bool) types.LogEvent {
	e.ev = e.ev.Bool(key, value)
	return e
}

func (e *logEvent) Err(err error) types.LogEvent {
	e.ev = e.ev.Err(err)
	return e
}

func (e *logEvent) Msg(message string) { e.ev.Msg(message) }

func (e *logEvent) Msgf(format string, args ...interface{}) { e.ev.Msgf(format, args...) }

type logContext struct {
	ctx zerolog.Context
}

func (c *logContext) Str(key, value string) types.LogContext {
	c.ctx = c.ctx.Str(key, value)
	return c
}

func (c *logContext) Int(key string, value int) types.LogContext {
	c.ctx = c.ctx.Int(key, value)
	return c
}

func (c *logContext) Logger() types.Logger {
	zl := c.ctx.Logger()
	return &Logger{zl: zl}
}

// NewTaskLogger derives a Logger pre-bound with the task id, the way a
// per-task log line carries its identity through every subsequent field.
func NewTaskLogger(base types.Logger, taskID int) types.Logger {
	return base.With().Int("task_id", taskID).Logger()
}

// NewWorkflowLogger derives a Logger pre-bound with the execution id.
func NewWorkflowLogger(base types.Logger, executionID string) types.Logger {
	return base.With().Str("execution_id", executionID).Logger()
}
