// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetWorkflowLogger returns a logger for the workflow engine
func GetWorkflowLogger() zerolog.Logger {
	return GetLogger("workflow")
}

// GetCapabilityLogger returns a logger for capability/agent operations
func GetCapabilityLogger() zerolog.Logger {
	return GetLogger("capability")
}

// GetDatabaseLogger returns a logger for database operations
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger("database")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}
