// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/vidya-ai/vidya/internal/config"
)

func TestStaticLoggerGetters(t *testing.T) {
	cfg := &config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{
			{Type: "console", Enabled: true},
		},
		Levels: map[string]string{
			"workflow":   "debug",
			"capability": "warn",
			"database":   "trace",
			"api":        "info",
		},
		Context: config.LogContextConfig{
			IncludeTimestamp: true,
		},
	}

	if err := Initialize(cfg); err != nil {
		t.Fatalf("failed to initialize global logger: %v", err)
	}
	defer CloseGlobal()

	tests := []struct {
		name       string
		getterFunc func() zerolog.Logger
	}{
		{"workflow_logger", GetWorkflowLogger},
		{"capability_logger", GetCapabilityLogger},
		{"database_logger", GetDatabaseLogger},
		{"api_logger", GetAPILogger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := tt.getterFunc()
			logger.Info().Str("test", "value").Msg("info test")
			logger.Error().Msg("error test")

			// Repeated calls return a functional cached logger.
			logger2 := tt.getterFunc()
			logger2.Info().Msg("second logger test")
		})
	}
}

func TestStaticLoggerGetters_Uninitialized(t *testing.T) {
	originalManager := globalManager
	globalManager = nil
	defer func() {
		globalManager = originalManager
	}()

	tests := []struct {
		name       string
		getterFunc func() zerolog.Logger
	}{
		{"workflow_uninitialized", GetWorkflowLogger},
		{"capability_uninitialized", GetCapabilityLogger},
		{"database_uninitialized", GetDatabaseLogger},
		{"api_uninitialized", GetAPILogger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Must not panic: uninitialized getters fall back to a
			// discard logger.
			logger := tt.getterFunc()
			logger.Info().Str("test", "uninitialized").Msg("test message")
			logger.Error().Msg("error message")
		})
	}
}

func TestStaticLoggerGetters_Consistency(t *testing.T) {
	cfg := &config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{
			{Type: "console", Enabled: true},
		},
	}

	if err := Initialize(cfg); err != nil {
		t.Fatalf("failed to initialize global logger: %v", err)
	}
	defer CloseGlobal()

	tests := []struct {
		name       string
		getterFunc func() zerolog.Logger
		pkgName    string
	}{
		{"workflow_consistency", GetWorkflowLogger, "workflow"},
		{"capability_consistency", GetCapabilityLogger, "capability"},
		{"database_consistency", GetDatabaseLogger, "database"},
		{"api_consistency", GetAPILogger, "api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staticLogger := tt.getterFunc()
			directLogger := GetLogger(tt.pkgName)

			staticLogger.Info().Msg("static logger test")
			directLogger.Info().Msg("direct logger test")
		})
	}
}

func TestSetPackageLevel(t *testing.T) {
	cfg := &config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{
			{Type: "console", Enabled: true},
		},
	}

	if err := Initialize(cfg); err != nil {
		t.Fatalf("failed to initialize global logger: %v", err)
	}
	defer CloseGlobal()

	logger := GetWorkflowLogger()
	logger.Info().Msg("before level change")

	if globalManager != nil {
		globalManager.SetPackageLevel("workflow", "debug")
	}

	logger2 := GetWorkflowLogger()
	logger2.Debug().Msg("debug message after level change")
}
