// Package processed maintains the flattened projection tables. Each rebuild
// reads the entity's raw audit table, keeps the most recently ingested row
// per source id, flattens it, and replaces the processed table contents in a
// single transaction so readers never see a partial rebuild.
package processed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/flatten"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const insertBatchSize = 500

// Repository handles the processed projection tables.
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

type rawRow struct {
	SourceID   string    `db:"source_id"`
	Payload    []byte    `db:"payload"`
	IngestedAt time.Time `db:"ingested_at"`
}

// Rebuild replaces the processed table for the entity type from its raw
// audit table. Duplicate source ids resolve last-write-wins by ingestion
// time. Returns the number of rows in the rebuilt table.
func (r *Repository) Rebuild(ctx context.Context, entityType models.EntityType) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.Rebuild")
	defer span.End()

	start := time.Now()

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (source_id) source_id, payload, ingested_at
		FROM %s
		ORDER BY source_id, ingested_at DESC, id DESC
	`, entityType.RawTable())

	var rows []rawRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_type": entityType}).Error("Failed to read raw records for rebuild")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to read raw %s records: %v", entityType, err)
	}

	txCtx, tx, err := database.GetTx(ctx, r.logger, r.db, nil)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to open rebuild transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(txCtx, fmt.Sprintf("DELETE FROM %s", entityType.ProcessedTable())); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_type": entityType}).Error("Failed to clear processed table")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to clear processed %s: %v", entityType, err)
	}

	inserted, err := r.insertRows(txCtx, tx, entityType, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"entity_type": entityType}).Error("Failed to commit processed rebuild")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to commit processed %s rebuild: %v", entityType, err)
	}

	metrics.DatabaseQueryDuration.WithLabelValues("processed_rebuild").Observe(time.Since(start).Seconds())
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_type": entityType,
		"rows":        inserted,
		"skipped":     len(rows) - inserted,
	}).Info("Rebuilt processed table")

	return inserted, nil
}

// insertRows flattens and inserts the deduplicated raw rows. Rows whose
// payload cannot be flattened are logged and skipped rather than failing the
// rebuild; the raw copy is retained for inspection.
func (r *Repository) insertRows(ctx context.Context, tx database.Tx, entityType models.EntityType, rows []rawRow) (int, error) {
	switch entityType {
	case models.EntityTypeStripeCustomers:
		return insertFlattened(ctx, r, tx, entityType, rows, flatten.StripeCustomer, insertStripeCustomersQuery)
	case models.EntityTypeStripeSubscriptions:
		return insertFlattened(ctx, r, tx, entityType, rows, flatten.StripeSubscription, insertStripeSubscriptionsQuery)
	case models.EntityTypeAutoCareCustomers:
		return insertFlattened(ctx, r, tx, entityType, rows, flatten.AutoCareCustomer, insertAutoCareCustomersQuery)
	case models.EntityTypeAutoCareSubscriptions:
		return insertFlattened(ctx, r, tx, entityType, rows, flatten.AutoCareSubscription, insertAutoCareSubscriptionsQuery)
	case models.EntityTypeAutoCareSessions:
		return insertFlattened(ctx, r, tx, entityType, rows, flatten.AutoCareSession, insertAutoCareSessionsQuery)
	case models.EntityTypeAutoCareVehicles:
		return insertFlattened(ctx, r, tx, entityType, rows, flatten.AutoCareVehicle, insertAutoCareVehiclesQuery)
	case models.EntityTypeAutoCareTiers:
		return insertFlattened(ctx, r, tx, entityType, rows, flatten.AutoCareTier, insertAutoCareTiersQuery)
	default:
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown entity type: %s", entityType)
	}
}

func insertFlattened[T any](
	ctx context.Context,
	r *Repository,
	tx database.Tx,
	entityType models.EntityType,
	rows []rawRow,
	flattenFn func(json.RawMessage, time.Time) (T, error),
	insertQuery string,
) (int, error) {
	flattened := make([]T, 0, len(rows))
	for _, row := range rows {
		model, err := flattenFn(row.Payload, row.IngestedAt)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"entity_type": entityType,
				"source_id":   row.SourceID,
			}).Warn("Skipping unflattenable raw record")
			continue
		}
		flattened = append(flattened, model)
	}

	for start := 0; start < len(flattened); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(flattened) {
			end = len(flattened)
		}
		if _, err := tx.NamedExecContext(ctx, insertQuery, flattened[start:end]); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"entity_type": entityType,
				"batch_start": start,
			}).Error("Failed to insert processed rows")
			return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert processed %s rows: %v", entityType, err)
		}
	}

	return len(flattened), nil
}

const insertStripeCustomersQuery = `
	INSERT INTO processed_stripe_customers (id, object, email, name, description, phone, created,
		address_line1, address_line2, address_city, address_state, address_postal_code, address_country,
		currency, balance, delinquent, default_source, invoice_prefix, ingested_at)
	VALUES (:id, :object, :email, :name, :description, :phone, :created,
		:address_line1, :address_line2, :address_city, :address_state, :address_postal_code, :address_country,
		:currency, :balance, :delinquent, :default_source, :invoice_prefix, :ingested_at)
`

const insertStripeSubscriptionsQuery = `
	INSERT INTO processed_stripe_subscriptions (id, object, customer_id, status, created,
		current_period_start, current_period_end, cancel_at_period_end, canceled_at, ended_at,
		amount, currency, interval, interval_count, plan_id, plan_name, product_id,
		collection_method, ingested_at)
	VALUES (:id, :object, :customer_id, :status, :created,
		:current_period_start, :current_period_end, :cancel_at_period_end, :canceled_at, :ended_at,
		:amount, :currency, :interval, :interval_count, :plan_id, :plan_name, :product_id,
		:collection_method, :ingested_at)
`

const insertAutoCareCustomersQuery = `
	INSERT INTO processed_autocare_customers (id, billing_customer_id, email, name, phone, tier_id,
		created_at, updated_at, ingested_at)
	VALUES (:id, :billing_customer_id, :email, :name, :phone, :tier_id,
		:created_at, :updated_at, :ingested_at)
`

const insertAutoCareSubscriptionsQuery = `
	INSERT INTO processed_autocare_subscriptions (id, customer_id, billing_customer_id, tier_id, status,
		started_at, expires_at, created_at, updated_at, ingested_at)
	VALUES (:id, :customer_id, :billing_customer_id, :tier_id, :status,
		:started_at, :expires_at, :created_at, :updated_at, :ingested_at)
`

const insertAutoCareSessionsQuery = `
	INSERT INTO processed_autocare_sessions (id, customer_id, billing_customer_id, vehicle_id, service_type,
		occurred_at, created_at, updated_at, ingested_at)
	VALUES (:id, :customer_id, :billing_customer_id, :vehicle_id, :service_type,
		:occurred_at, :created_at, :updated_at, :ingested_at)
`

const insertAutoCareVehiclesQuery = `
	INSERT INTO processed_autocare_vehicles (id, customer_id, billing_customer_id, make, model, year, plate,
		created_at, updated_at, ingested_at)
	VALUES (:id, :customer_id, :billing_customer_id, :make, :model, :year, :plate,
		:created_at, :updated_at, :ingested_at)
`

const insertAutoCareTiersQuery = `
	INSERT INTO processed_autocare_tiers (id, name, level, price, perks, ingested_at)
	VALUES (:id, :name, :level, :price, :perks, :ingested_at)
`
