// Package logger provides the structured, leveled logger shared by every
// core package. It follows the teacher's shape: a package-level default
// logger built from a small factory, switchable between text and json
// formats, with Tracef/Debugf/Infof/Warnf/Errorf convenience wrappers.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type loggerFactory struct {
	format string // "text" or "json"
	level  *slog.LevelVar
	prefix string
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				lvl := a.Value.Any().(slog.Level)
				a.Key = "severity"
				a.Value = slog.StringValue(levelName(lvl))
			case slog.MessageKey:
				a.Value = slog.StringValue(prefix + a.Value.String())
			case slog.TimeKey:
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	defaultLoggerFactory = &loggerFactory{format: "text", level: &slog.LevelVar{}}
	defaultLogger         = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, defaultLoggerFactory.level, ""))
)

// Config selects the sink and verbosity for Init.
type Config struct {
	Format   string   // "text" or "json"
	Severity Severity // minimum severity emitted
	FilePath string   // empty => stderr
	MaxSizeMB int     // lumberjack rotation size; 0 => library default
}

// closer is released on Shutdown, if Init opened a rotating file sink.
var closer io.Closer

// Init (re)configures the default logger. It is safe to call at most once
// per process lifetime in production; tests do not call it and instead
// swap defaultLogger through the lower-level helpers in this package.
func Init(cfg Config) error {
	defaultLoggerFactory.format = cfg.Format
	setLoggingLevel(cfg.Severity, defaultLoggerFactory.level)

	var w io.Writer = os.Stderr
	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{Filename: cfg.FilePath, MaxSize: cfg.MaxSizeMB}
		async := NewAsyncLogger(lj, 4096)
		w = async
		closer = async
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, defaultLoggerFactory.level, ""))
	return nil
}

// Shutdown flushes and closes any rotating file sink opened by Init.
func Shutdown() error {
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func setLoggingLevel(s Severity, v *slog.LevelVar) {
	v.Set(s.slogLevel())
}

func Tracef(format string, args ...any) {
	defaultLogger.Log(context.Background(), levelTrace, fmt.Sprintf(format, args...))
}
func Debugf(format string, args ...any) { defaultLogger.Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { defaultLogger.Info(fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { defaultLogger.Warn(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { defaultLogger.Error(fmt.Sprintf(format, args...)) }
