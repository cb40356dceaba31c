// Package raw persists fetched source payloads verbatim into the append-only
// audit tables. Rows are never updated or deleted; re-fetching a record
// appends a second row, and the processed rebuild resolves duplicates by
// ingestion recency.
package raw

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/sources"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const defaultBatchSize = 500

// Repository handles raw payload persistence.
type Repository struct {
	db        database.DB
	logger    ectologger.Logger
	batchSize int
}

func NewRepository(db database.DB, logger ectologger.Logger, batchSize int) *Repository {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Repository{
		db:        db,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Append inserts the fetched records into the entity's raw table in batches
// and returns the number of rows written. A batch failure aborts the append;
// rows written by earlier batches stay, which is safe because the audit
// tables tolerate duplicates.
func (r *Repository) Append(ctx context.Context, entityType models.EntityType, records []sources.Record, ingestedAt time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "raw.Repository.Append")
	defer span.End()

	if len(records) == 0 {
		return 0, nil
	}

	total := 0
	for start := 0; start < len(records); start += r.batchSize {
		end := start + r.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto(entityType.RawTable())
		ib.Cols("id", "source_id", "payload", "source_created_at", "ingested_at")
		for _, rec := range batch {
			ib.Values(uuid.NewString(), rec.ID, []byte(rec.Payload), rec.CreatedAt, ingestedAt)
		}

		query, args := ib.Build()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"entity_type": entityType,
				"batch_start": start,
				"batch_size":  len(batch),
			}).Error("Failed to append raw records")
			return total, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to append raw %s records: %v", entityType, err)
		}
		total += len(batch)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": entityType,
		"rows":        total,
	}).Info("Appended raw records")

	return total, nil
}

// CountByEntity returns the total audit row count for the entity type.
func (r *Repository) CountByEntity(ctx context.Context, entityType models.EntityType) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "raw.Repository.CountByEntity")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(entityType.RawTable())

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_type": entityType}).Error("Failed to count raw records")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count raw %s records: %v", entityType, err)
	}
	return count, nil
}

// DistinctSourceIDs returns the set of distinct source ids present in the
// entity's audit table.
func (r *Repository) DistinctSourceIDs(ctx context.Context, entityType models.EntityType) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "raw.Repository.DistinctSourceIDs")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("DISTINCT source_id")
	sb.From(entityType.RawTable())

	query, args := sb.Build()
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_type": entityType}).Error("Failed to list distinct source ids")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list %s source ids: %v", entityType, err)
	}
	return ids, nil
}
