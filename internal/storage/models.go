// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists terminal workflows through gorm so results and
// event history outlive the in-memory store.
package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vidya-ai/vidya/internal/workflow"
)

// JSONMap stores a map[string]any as a JSON column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	return string(data), err
}

func (m *JSONMap) Scan(value any) error {
	return scanJSON(value, m)
}

// JSONResults stores workflow results as a JSON column.
type JSONResults workflow.Results

func (r JSONResults) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	data, err := json.Marshal(r)
	return string(data), err
}

func (r *JSONResults) Scan(value any) error {
	return scanJSON(value, r)
}

// JSONEvents stores the event log as a JSON column.
type JSONEvents []workflow.Event

func (e JSONEvents) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	data, err := json.Marshal(e)
	return string(data), err
}

func (e *JSONEvents) Scan(value any) error {
	return scanJSON(value, e)
}

func scanJSON(value, dest any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", value)
	}
}

// WorkflowRecord is the archived row for one terminal workflow.
type WorkflowRecord struct {
	ID          string      `gorm:"primaryKey;size:64"`
	Type        string      `gorm:"size:128;index"`
	OwnerID     string      `gorm:"size:128;index"`
	Status      string      `gorm:"size:32"`
	Progress    int         ``
	Request     JSONMap     `gorm:"type:text"`
	Results     JSONResults `gorm:"type:text"`
	Events      JSONEvents  `gorm:"type:text"`
	CreatedAt   time.Time   ``
	StartedAt   *time.Time  ``
	CompletedAt *time.Time  ``
	ArchivedAt  time.Time   `gorm:"autoUpdateTime"`
}

func (WorkflowRecord) TableName() string { return "workflow_archive" }

func recordFromWorkflow(wf *workflow.Workflow) WorkflowRecord {
	return WorkflowRecord{
		ID:          wf.ID,
		Type:        wf.Request.Type,
		OwnerID:     wf.Request.OwnerID,
		Status:      wf.Status.String(),
		Progress:    wf.Progress,
		Request:     JSONMap(wf.Request.Data),
		Results:     JSONResults(wf.Results),
		Events:      JSONEvents(wf.Events),
		CreatedAt:   wf.CreatedAt,
		StartedAt:   wf.StartedAt,
		CompletedAt: wf.CompletedAt,
	}
}

func (r WorkflowRecord) toWorkflow() (*workflow.Workflow, error) {
	status, err := workflow.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	return &workflow.Workflow{
		ID: r.ID,
		Request: workflow.Request{
			Type:    r.Type,
			Data:    map[string]any(r.Request),
			OwnerID: r.OwnerID,
		},
		Status:      status,
		Progress:    r.Progress,
		Results:     workflow.Results(r.Results),
		Events:      []workflow.Event(r.Events),
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}
