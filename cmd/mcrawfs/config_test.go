// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
source_dir: /data/clips
mountpoint: /mnt/clips
cache_frames: 8
allow_other: true
log_level: debug
`)
	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.SourceDir != "/data/clips" || config.Mountpoint != "/mnt/clips" {
		t.Errorf("paths = %+v", config)
	}
	if config.CacheFrames != 8 || !config.AllowOther || config.LogLevel != "debug" {
		t.Errorf("options = %+v", config)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "source_dirr: /data/clips\n")
	if _, err := loadConfig(path); err == nil {
		t.Error("accepted a typoed key")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("accepted a missing file")
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
		ok   bool
	}{
		{"", slog.LevelInfo, true},
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", 0, false},
	}
	for _, test := range tests {
		level, err := logLevel(test.name)
		if test.ok != (err == nil) {
			t.Errorf("logLevel(%q) error = %v", test.name, err)
			continue
		}
		if test.ok && level != test.want {
			t.Errorf("logLevel(%q) = %v, want %v", test.name, level, test.want)
		}
	}
}
