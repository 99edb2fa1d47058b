package pkg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// levelTrace sits below slog.LevelDebug for pion's trace output.
const levelTrace = slog.Level(-8)

// PionLoggerFactory routes pion internal logs into slog.
type PionLoggerFactory struct {
	logger *slog.Logger
}

func NewPionLoggerFactory(logger *slog.Logger) *PionLoggerFactory {
	return &PionLoggerFactory{logger: logger}
}

func (that *PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{logger: that.logger.With("pion", scope)}
}

type pionLogger struct {
	logger *slog.Logger
}

func (that *pionLogger) log(level slog.Level, msg string) {
	that.logger.Log(context.Background(), level, msg)
}

func (that *pionLogger) Trace(msg string) { that.log(levelTrace, msg) }
func (that *pionLogger) Tracef(format string, args ...interface{}) {
	that.log(levelTrace, fmt.Sprintf(format, args...))
}

func (that *pionLogger) Debug(msg string) { that.log(slog.LevelDebug, msg) }
func (that *pionLogger) Debugf(format string, args ...interface{}) {
	that.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}

func (that *pionLogger) Info(msg string) { that.log(slog.LevelInfo, msg) }
func (that *pionLogger) Infof(format string, args ...interface{}) {
	that.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (that *pionLogger) Warn(msg string) { that.log(slog.LevelWarn, msg) }
func (that *pionLogger) Warnf(format string, args ...interface{}) {
	that.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}

func (that *pionLogger) Error(msg string) { that.log(slog.LevelError, msg) }
func (that *pionLogger) Errorf(format string, args ...interface{}) {
	that.log(slog.LevelError, fmt.Sprintf(format, args...))
}
