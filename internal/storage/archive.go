// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vidya-ai/vidya/internal/config"
	"github.com/vidya-ai/vidya/internal/logger"
	"github.com/vidya-ai/vidya/internal/workflow"
)

var (
	dbLog     zerolog.Logger
	dbLogOnce sync.Once
)

func getLog() *zerolog.Logger {
	dbLogOnce.Do(func() {
		dbLog = logger.GetDatabaseLogger()
	})
	return &dbLog
}

// GormArchive implements workflow.Archive on a relational database.
type GormArchive struct {
	db *gorm.DB
}

// NewGormArchive opens the configured database and migrates the archive
// schema.
func NewGormArchive(cfg *config.DatabaseConfig) (*GormArchive, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&WorkflowRecord{}); err != nil {
		return nil, fmt.Errorf("migrating archive schema: %w", err)
	}
	getLog().Info().Str("driver", cfg.Driver).Msg("Workflow archive ready")
	return &GormArchive{db: db}, nil
}

// Save upserts the workflow's archived row.
func (a *GormArchive) Save(wf *workflow.Workflow) error {
	record := recordFromWorkflow(wf)
	err := a.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("archiving workflow %s: %w", wf.ID, err)
	}
	getLog().Debug().Str("workflow_id", wf.ID).Str("status", wf.Status.String()).Msg("Workflow archived")
	return nil
}

// Get loads an archived workflow, returning workflow.ErrNotFound when no
// row exists.
func (a *GormArchive) Get(id string) (*workflow.Workflow, error) {
	var record WorkflowRecord
	err := a.db.First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading archived workflow %s: %w", id, err)
	}
	return record.toWorkflow()
}

// List returns the most recently archived workflows, newest first.
func (a *GormArchive) List(limit int) ([]*workflow.Workflow, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []WorkflowRecord
	if err := a.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing archived workflows: %w", err)
	}
	out := make([]*workflow.Workflow, 0, len(records))
	for _, r := range records {
		wf, err := r.toWorkflow()
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, nil
}

// Delete removes an archived workflow.
func (a *GormArchive) Delete(id string) error {
	res := a.db.Delete(&WorkflowRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting archived workflow %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return workflow.ErrNotFound
	}
	return nil
}
