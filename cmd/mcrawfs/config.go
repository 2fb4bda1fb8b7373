// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors the optional YAML configuration file. Command-line
// flags override any value set here.
type Config struct {
	// SourceDir is the directory scanned for *.mcraw containers.
	SourceDir string `yaml:"source_dir"`

	// Mountpoint is where the filesystem is mounted. Created if
	// absent, removed again on clean shutdown if we created it.
	Mountpoint string `yaml:"mountpoint"`

	// CacheFrames is the number of materialized frames kept per
	// container. Zero uses the built-in default.
	CacheFrames int `yaml:"cache_frames"`

	// AllowOther permits other users to access the mount.
	AllowOther bool `yaml:"allow_other"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`
}

// loadConfig reads and strictly decodes a YAML configuration file.
// Unknown keys are an error: a typoed key silently falling back to a
// default is worse than a startup failure.
func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return config, nil
}

// logLevel parses the configured level name.
func logLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
