package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/FACorreiaa/monexa/cmd/api"
	"github.com/FACorreiaa/monexa/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.Observability.LogFormat, cfg.Observability.LogLevel)
	slog.SetDefault(logger)

	if err := api.Run(context.Background(), cfg, logger); err != nil {
		logger.Error("monexa stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
