package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/khudiiash/three-ediitor/pkg/bridge"
)

const defaultConfigFile = "three-editor.yaml"

// loadDotEnv loads environment variables from path. A missing file is not an
// error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfigPath returns the explicit path if set, otherwise the default
// config file when it exists, otherwise "" (built-in defaults).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}

	return ""
}

// loadConfig resolves, loads and validates the bridge configuration.
func loadConfig(explicit string) (bridge.Config, error) {
	cfg, err := bridge.LoadConfig(resolveConfigPath(explicit))
	if err != nil {
		return bridge.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return bridge.Config{}, err
	}

	return cfg, nil
}

// newLogger builds the process logger from the log section of the config.
func newLogger(cfg bridge.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := bridge.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
