package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production emits JSON at info level
// regardless of LOG_FORMAT so log shippers never see the pretty handler;
// elsewhere the format follows configuration and debug records are kept.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}

	if cfg == nil {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}

	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("env", cfg.AppEnv))
}
