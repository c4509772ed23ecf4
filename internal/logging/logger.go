// Package logging provides the process-wide structured logger every other
// package logs through.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Log is the process-wide logger. It defaults to an info-level writer on
// stdout so packages can log before Init runs (tests rely on this).
var Log = slog.New(newHandler(slog.LevelInfo, os.Stdout))

// Init reconfigures Log to the given level, optionally tee-ing output to
// logFile in addition to stdout.
func Init(level string, logFile string) error {
	logLevel := parseLevel(level)

	writers := []io.Writer{os.Stdout}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	Log = slog.New(newHandler(logLevel, io.MultiWriter(writers...)))
	slog.SetDefault(Log)
	return nil
}

func newHandler(level slog.Level, w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
