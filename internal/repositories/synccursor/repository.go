// Package synccursor persists the append-only sync history. The table is
// never updated in place: every run appends one row per entity type, and the
// current cursor is derived as the latest success row.
package synccursor

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const allColumns = `id, entity_type, last_sync_timestamp, last_synced_id, records_synced,
	run_id, run_started_at, run_completed_at, status, error_message`

// Repository handles sync history persistence.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Latest returns the most recent successful sync row for the entity type.
// When no successful run exists the zero-value cursor is returned, which the
// engine treats as "sync everything from the beginning". Read errors
// propagate; a transient history failure must never silently restart the
// sync from epoch.
func (r *Repository) Latest(ctx context.Context, entityType models.EntityType) (*models.SyncCursor, error) {
	ctx, span := tracing.StartSpan(ctx, "synccursor.Repository.Latest")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(allColumns)
	sb.From("sync_history")
	sb.Where(
		sb.Equal("entity_type", string(entityType)),
		sb.Equal("status", string(models.SyncStatusSuccess)),
	)
	sb.OrderBy("run_completed_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var cursor models.SyncCursor
	if err := r.db.GetContext(ctx, &cursor, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SyncCursor{EntityType: entityType, Status: models.SyncStatusPending}, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_type": entityType}).Error("Failed to read sync cursor")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to read sync cursor: %v", err)
	}
	return &cursor, nil
}

// Record appends one run outcome to the history.
func (r *Repository) Record(ctx context.Context, outcome models.RunOutcome) (*models.SyncCursor, error) {
	ctx, span := tracing.StartSpan(ctx, "synccursor.Repository.Record")
	defer span.End()

	cursor := models.SyncCursor{
		ID:                uuid.NewString(),
		EntityType:        outcome.EntityType,
		LastSyncTimestamp: outcome.LastSyncTimestamp,
		RecordsSynced:     outcome.RecordsSynced,
		RunID:             outcome.RunID,
		RunStartedAt:      outcome.RunStartedAt,
		RunCompletedAt:    outcome.RunCompletedAt,
		Status:            outcome.Status,
	}
	if outcome.LastSyncedID != "" {
		cursor.LastSyncedID = &outcome.LastSyncedID
	}
	if outcome.ErrorMessage != "" {
		cursor.ErrorMessage = &outcome.ErrorMessage
	}

	query := `
		INSERT INTO sync_history (id, entity_type, last_sync_timestamp, last_synced_id, records_synced,
			run_id, run_started_at, run_completed_at, status, error_message)
		VALUES (:id, :entity_type, :last_sync_timestamp, :last_synced_id, :records_synced,
			:run_id, :run_started_at, :run_completed_at, :status, :error_message)
	`
	if _, err := r.db.NamedExecContext(ctx, query, cursor); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_type": outcome.EntityType,
			"run_id":      outcome.RunID,
			"status":      outcome.Status,
		}).Error("Failed to record sync outcome")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to record sync outcome: %v", err)
	}

	return &cursor, nil
}

// History returns sync rows newest first, optionally filtered by entity type.
func (r *Repository) History(ctx context.Context, entityType *models.EntityType, limit, offset int) ([]models.SyncCursor, error) {
	ctx, span := tracing.StartSpan(ctx, "synccursor.Repository.History")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(allColumns)
	sb.From("sync_history")
	if entityType != nil {
		sb.Where(sb.Equal("entity_type", string(*entityType)))
	}
	sb.OrderBy("run_completed_at DESC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var rows []models.SyncCursor
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list sync history")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list sync history: %v", err)
	}
	return rows, nil
}
