package models

import "time"

// SyncStatus is the lifecycle state of one entity sync run.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
)

// SyncCursor is one row of the append-only sync history. The current cursor
// for an entity type is the most recent success row, never a mutable field.
type SyncCursor struct {
	ID                string     `db:"id" json:"id"`
	EntityType        EntityType `db:"entity_type" json:"entity_type"`
	LastSyncTimestamp time.Time  `db:"last_sync_timestamp" json:"last_sync_timestamp"`
	LastSyncedID      *string    `db:"last_synced_id" json:"last_synced_id,omitempty"`
	RecordsSynced     int        `db:"records_synced" json:"records_synced"`
	RunID             string     `db:"run_id" json:"run_id"`
	RunStartedAt      time.Time  `db:"run_started_at" json:"run_started_at"`
	RunCompletedAt    time.Time  `db:"run_completed_at" json:"run_completed_at"`
	Status            SyncStatus `db:"status" json:"status"`
	ErrorMessage      *string    `db:"error_message" json:"error_message,omitempty"`
}

// RunOutcome is the result of one entity sync recorded into sync history.
type RunOutcome struct {
	EntityType        EntityType
	LastSyncTimestamp time.Time
	LastSyncedID      string
	RecordsSynced     int
	RunID             string
	RunStartedAt      time.Time
	RunCompletedAt    time.Time
	Status            SyncStatus
	ErrorMessage      string
}

// RunRequest is the trigger payload for a sync run.
type RunRequest struct {
	Entities        []string `json:"entities,omitempty" validate:"omitempty,dive,min=1"`
	IncludeAutoCare *bool    `json:"include_autocare,omitempty"`
}

// EntityResult summarizes one entity type's outcome within a run.
type EntityResult struct {
	EntityType    EntityType `json:"entity_type"`
	Status        SyncStatus `json:"status"`
	RecordsSynced int        `json:"records_synced"`
	Pages         int        `json:"pages"`
	Error         string     `json:"error,omitempty"`
}

// StageResult summarizes a post-sync pipeline stage (unify, snapshot,
// notification).
type StageResult struct {
	Ran   bool   `json:"ran"`
	Rows  int    `json:"rows,omitempty"`
	Error string `json:"error,omitempty"`
}

// RunResult is the aggregate outcome of a sync run returned by the trigger.
type RunResult struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at"`
	Entities     []EntityResult `json:"entities"`
	Unify        StageResult    `json:"unify"`
	Snapshot     StageResult    `json:"snapshot"`
	Notification StageResult    `json:"notification"`
	Success      bool           `json:"success"`
}
