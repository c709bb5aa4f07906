// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a JSON logger for production and a colorized tint logger otherwise.
// JSON records use "ts" as the time key, formatted in loc.
func New(w io.Writer, production bool, level string, loc *time.Location) *slog.Logger {
	lvl := ParseLevel(level)
	if loc == nil {
		loc = time.UTC
	}

	var h slog.Handler
	if production {
		h = NewJSONHandler(w, lvl, loc)
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			AddSource:  true,
			TimeFormat: "15:04:05.000",
		})
	}
	return slog.New(h)
}

// NewJSONHandler returns a slog JSON handler writing one object per line with a "ts" key.
func NewJSONHandler(w io.Writer, level slog.Leveler, loc *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339Nano))
			}
			return a
		},
	})
}

// SetDefault installs logger as the slog default and routes the standard log package through it.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), slog.LevelInfo).Writer())
}

// ParseLevel maps a textual level to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
