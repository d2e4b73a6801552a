// Copyright 2026 The Setefiscal Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/setefiscal/setefiscal/lib/calstore"
	"github.com/setefiscal/setefiscal/lib/clock"
	"github.com/setefiscal/setefiscal/lib/config"
	"github.com/setefiscal/setefiscal/lib/gateway"
	"github.com/setefiscal/setefiscal/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fiscald:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		listen      string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the config file (default: $FISCALD_CONFIG)")
	pflag.StringVar(&listen, "listen", "", "listen address override")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println("fiscald", version.Full())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := calstore.Open(calstore.Config{
		Path:   cfg.DatabasePath,
		Clock:  clock.Real(),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	validator := gateway.NewValidator(store, clock.Real(), logger)
	gw := gateway.New(store, validator, logger)

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newHandler(store, gw, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- server.ListenAndServe()
	}()

	logger.Info("fiscald running",
		"listen", cfg.Listen,
		"database", cfg.DatabasePath,
		"owners", len(cfg.Owners),
		"version", version.Info(),
	)

	select {
	case err := <-serveDone:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-serveDone; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
