// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// mcrawfs mounts a directory of MotionCam raw containers as a
// read-only FUSE filesystem of per-frame DNG files and per-container
// WAV audio tracks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/mcrawfs/lib/rawfs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		showVersion bool
		configPath  string
		sourceDir   string
		mountpoint  string
		cacheFrames int
		allowOther  bool
		logLevelArg string
	)
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.StringVar(&configPath, "config", "", "YAML configuration file (optional)")
	flag.StringVar(&sourceDir, "source-dir", "", "directory scanned for *.mcraw containers (required)")
	flag.StringVar(&mountpoint, "mountpoint", "", "mount directory, created if absent (required)")
	flag.IntVar(&cacheFrames, "cache-frames", 0, "materialized frames kept per container (0 = default)")
	flag.BoolVar(&allowOther, "allow-other", false, "permit other users to access the mount")
	flag.StringVar(&logLevelArg, "log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	if showVersion {
		fmt.Printf("mcrawfs %s\n", version)
		return nil
	}

	var config Config
	if configPath != "" {
		var err error
		config, err = loadConfig(configPath)
		if err != nil {
			return err
		}
	}

	// Flags override the configuration file.
	if sourceDir == "" {
		sourceDir = config.SourceDir
	}
	if mountpoint == "" {
		mountpoint = config.Mountpoint
	}
	if cacheFrames == 0 {
		cacheFrames = config.CacheFrames
	}
	if !allowOther {
		allowOther = config.AllowOther
	}
	if logLevelArg == "" {
		logLevelArg = config.LogLevel
	}

	if sourceDir == "" {
		return fmt.Errorf("--source-dir is required")
	}
	if mountpoint == "" {
		return fmt.Errorf("--mountpoint is required")
	}

	level, err := logLevel(logLevelArg)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	containers, err := rawfs.LoadDirectory(sourceDir, cacheFrames, logger)
	if err != nil {
		return err
	}

	// Remember whether the mountpoint existed so shutdown only
	// removes directories this process created.
	createdMountpoint := false
	if _, err := os.Stat(mountpoint); os.IsNotExist(err) {
		createdMountpoint = true
	}

	server, err := rawfs.Mount(rawfs.Options{
		Mountpoint: mountpoint,
		Containers: containers,
		AllowOther: allowOther,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mcrawfs running",
		"source", sourceDir,
		"mountpoint", mountpoint,
		"containers", len(containers),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmounting %s: %w", mountpoint, err)
	}
	if createdMountpoint {
		if err := os.Remove(mountpoint); err != nil {
			logger.Warn("removing mountpoint failed", "mountpoint", mountpoint, "error", err)
		}
	}
	return nil
}
