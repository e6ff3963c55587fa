package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mk-gloamglozer/rusty-poker/internal/config"
)

// TestNewLogger_Levels verifies the level names gate log records as
// configured, with unknown names falling back to info.
func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()

	debug := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	if !debug.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug logger rejects debug records")
	}

	warn := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	if warn.Enabled(ctx, slog.LevelInfo) {
		t.Error("warn logger accepts info records")
	}
	if !warn.Enabled(ctx, slog.LevelWarn) {
		t.Error("warn logger rejects warn records")
	}

	errors := newLogger(config.LogConfig{Level: "error", Format: "json"})
	if errors.Enabled(ctx, slog.LevelWarn) {
		t.Error("error logger accepts warn records")
	}

	fallback := newLogger(config.LogConfig{Level: "verbose", Format: "json"})
	if fallback.Enabled(ctx, slog.LevelDebug) {
		t.Error("fallback logger accepts debug records")
	}
	if !fallback.Enabled(ctx, slog.LevelInfo) {
		t.Error("fallback logger rejects info records")
	}
}

// TestNewLogger_Formats verifies the format names select a handler, with
// auto resolving by terminal detection.
func TestNewLogger_Formats(t *testing.T) {
	if _, ok := newLogger(config.LogConfig{Level: "info", Format: "json"}).Handler().(*slog.JSONHandler); !ok {
		t.Error("json format did not build a JSON handler")
	}
	if _, ok := newLogger(config.LogConfig{Level: "info", Format: "text"}).Handler().(*slog.TextHandler); !ok {
		t.Error("text format did not build a text handler")
	}
	switch newLogger(config.LogConfig{Level: "info", Format: "auto"}).Handler().(type) {
	case *slog.JSONHandler, *slog.TextHandler:
	default:
		t.Error("auto format did not resolve to a concrete handler")
	}
}
