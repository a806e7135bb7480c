package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hrygo/manas/internal/profile"
)

// setupLogger installs the default slog logger: text in dev, JSON in prod,
// mirrored to a rotated file when LogFile is set. The returned func closes the file.
func setupLogger(p *profile.Profile) func() {
	var (
		w       io.Writer = os.Stdout
		closeFn           = func() {}
	)
	if p.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(p.LogFile), 0o755); err != nil {
			slog.Warn("failed to create log directory, logging to stdout only", "path", p.LogFile, "error", err)
		} else {
			rotated := &lumberjack.Logger{
				Filename:   p.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			w = io.MultiWriter(os.Stdout, rotated)
			closeFn = func() { _ = rotated.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: logLevel(p)}
	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closeFn
}

func logLevel(p *profile.Profile) slog.Level {
	var level slog.Level
	if p.LogLevel != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(p.LogLevel))); err == nil {
			return level
		}
	}
	if p.IsDev() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
