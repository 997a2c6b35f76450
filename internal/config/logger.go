package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application logger. Output goes to stdout and, when
// LOG_FILE is set, to a rotated file.
func NewLogger(cfg *Config) *slog.Logger {
	writers := []io.Writer{os.Stdout}
	if cfg.Log.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		})
	}

	w := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Log.Level),
		AddSource: cfg.IsDev(),
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(
		slog.String("service", "estate-commission"),
		slog.String("env", cfg.AppMode),
	)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
