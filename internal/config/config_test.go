// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "vidya.db", cfg.Database.Database)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 2*time.Minute, cfg.Gemini.Timeout)
	assert.Equal(t, 4, cfg.Workflow.MaxConcurrentSteps)
	assert.Equal(t, 32, cfg.Workflow.MaxLiveWorkflows)
	assert.Equal(t, 5*time.Minute, cfg.Workflow.StepTimeout)
	assert.Equal(t, 15*time.Second, cfg.Workflow.KeepaliveInterval)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Contains(t, cfg.Log.Levels, "workflow")
	assert.Empty(t, cfg.Templates.Dir)
}

func TestNewConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
  allowed_origins:
    - https://app.example.com
database:
  driver: postgres
  host: db.internal
  port: 5433
  username: vidya
  password: secret
  database: vidya_prod
  ssl_mode: require
gemini:
  api_key: test-key
  timeout: 30s
workflow:
  max_concurrent_steps: 2
  step_timeout: 1m
`)
	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 2, cfg.Workflow.MaxConcurrentSteps)
	assert.Equal(t, time.Minute, cfg.Workflow.StepTimeout)
	// Values not in the file keep their defaults.
	assert.Equal(t, 32, cfg.Workflow.MaxLiveWorkflows)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
}

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad log level",
			content: "log:\n  level: LOUD\n",
			wantErr: "invalid log level",
		},
		{
			name:    "bad port",
			content: "server:\n  port: 999999\n",
			wantErr: "invalid server port",
		},
		{
			name:    "zero concurrency",
			content: "workflow:\n  max_concurrent_steps: 0\n",
			wantErr: "max_concurrent_steps",
		},
		{
			name:    "empty gemini model",
			content: "gemini:\n  model: \"\"\n",
			wantErr: "gemini.model",
		},
		{
			name:    "negative body limit",
			content: "server:\n  max_body_bytes: -1\n",
			wantErr: "max_body_bytes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Database: "vidya.db"}
	assert.Equal(t, "vidya.db", sqlite.GetDSN())

	sqliteMem := DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	assert.Equal(t, "file::memory:?cache=shared", sqliteMem.GetDSN())

	pg := DatabaseConfig{
		Driver: "postgres", Host: "db", Port: 5432,
		Username: "u", Password: "p", Database: "d", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", pg.GetDSN())
}

func TestExpandPaths(t *testing.T) {
	t.Setenv("VIDYA_TEST_DIR", "/tmp/vidya-templates")
	path := writeConfig(t, "templates:\n  dir: $VIDYA_TEST_DIR\n")
	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vidya-templates", cfg.Templates.Dir)
}
