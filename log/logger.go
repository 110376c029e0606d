// Package log provides structured logging with session context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the proxy core (structured fields)
//   - SugaredLogger: Printf-style logging for CLI/debug surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/kdp/types"
)

// Verbosity levels accepted by -v.
const (
	VerbosityWarn    = 0
	VerbosityInfo    = 1
	VerbosityDebug   = 2
	VerbosityPackets = 3
)

// Logger provides structured logging with session context.
type Logger struct {
	zap       *zap.Logger
	fields    []zap.Field
	verbosity int
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a logger writing JSON lines to os.Stderr.
func NewLogger(verbosity int) *Logger {
	return newLoggerWithWriter(os.Stderr, verbosity)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

// WithOutput returns a new logger with a different output writer.
// Context fields are carried over.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return &Logger{
		zap:       zap.New(newCore(w, l.verbosity)).With(l.fields...),
		fields:    l.fields,
		verbosity: l.verbosity,
	}
}

// WithSession returns a logger that tags every entry with the session identity.
func (l *Logger) WithSession(meta types.SessionMeta) *Logger {
	fields := []zap.Field{zap.String("session_id", meta.SessionID)}
	if meta.VMAddr != "" {
		fields = append(fields, zap.String("vm_addr", meta.VMAddr))
	}
	if meta.DebuggerAddr != "" {
		fields = append(fields, zap.String("debugger_addr", meta.DebuggerAddr))
	}
	return l.with(fields...)
}

// With returns a logger with an additional component name.
func (l *Logger) With(component string) *Logger {
	return l.with(zap.String("component", component))
}

func (l *Logger) with(fields ...zap.Field) *Logger {
	all := append(append([]zap.Field(nil), l.fields...), fields...)
	return &Logger{zap: l.zap.With(fields...), fields: all, verbosity: l.verbosity}
}

func newLoggerWithWriter(w io.Writer, verbosity int) *Logger {
	return &Logger{zap: zap.New(newCore(w, verbosity)), verbosity: verbosity}
}

func newCore(w io.Writer, verbosity int) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		levelFor(verbosity),
	)
}

func levelFor(verbosity int) zapcore.Level {
	switch {
	case verbosity >= VerbosityDebug:
		return zapcore.DebugLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}

// Verbosity returns the configured -v level.
func (l *Logger) Verbosity() int {
	return l.verbosity
}

// PacketsEnabled reports whether every packet header should be logged.
func (l *Logger) PacketsEnabled() bool {
	return l.verbosity >= VerbosityPackets
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
