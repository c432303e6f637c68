// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidya-ai/vidya/internal/capability"
	"github.com/vidya-ai/vidya/internal/config"
	"github.com/vidya-ai/vidya/internal/logger"
	"github.com/vidya-ai/vidya/internal/server"
	"github.com/vidya-ai/vidya/internal/storage"
	"github.com/vidya-ai/vidya/internal/workflow"
)

func main() {
	cfg, err := config.NewConfig("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Msg("Starting vidya API server")

	// Generation backend. Without an API key the server still runs, with
	// canned agent output, so local development needs no credentials.
	var gen capability.Generator
	if cfg.Gemini.APIKey != "" {
		gen = capability.NewGeminiGenerator(cfg.Gemini)
	} else {
		mainLog.Warn().Msg("No Gemini API key configured, using static generation")
		gen = &capability.StaticGenerator{}
	}

	registry := capability.NewRegistry()
	capability.RegisterLessonAgents(registry, gen)

	templates := workflow.NewTemplates()
	if cfg.Templates.Dir != "" {
		if err := templates.LoadDir(cfg.Templates.Dir); err != nil {
			mainLog.Error().Err(err).Msg("Error loading workflow templates")
			fmt.Fprintf(os.Stderr, "Error loading workflow templates: %v\n", err)
			os.Exit(1)
		}
	}

	archive, err := storage.NewGormArchive(&cfg.Database)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error opening workflow archive")
		fmt.Fprintf(os.Stderr, "Error opening workflow archive: %v\n", err)
		os.Exit(1)
	}

	service := workflow.NewService(
		workflow.NewMemoryStore(),
		templates,
		capability.NewAdapter(registry),
		archive,
		cfg.Workflow,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(&cfg.Server, service, registry, cfg.Workflow.KeepaliveInterval)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(ctx)
	}()

	// Wait for signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			mainLog.Error().Err(err).Msg("Server error")
		}
	}

	// Graceful shutdown: fresh context with timeout, independent of the
	// engine ctx.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}

	mainLog.Info().Msg("Shutting down workflow engine...")
	cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down workflow engine")
	}

	mainLog.Info().Msg("API server shut down")
}
