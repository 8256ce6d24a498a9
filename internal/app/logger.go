package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
// Production deployments ship JSON; everything else gets text output.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "tramatex"))
}
