// Package snapshot persists the flat per-customer BI rows. Like the unified
// table, the snapshot is replaced wholesale after every sync.
package snapshot

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const insertBatchSize = 500

// Repository handles BI snapshot persistence.
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

const allColumns = `customer_id, email, name, phone, customer_status, tier_name,
	latest_subscription_id, latest_subscription_status, latest_subscription_amount,
	latest_subscription_plan, latest_subscription_created,
	latest_autocare_subscription_id, latest_autocare_subscription_status, latest_autocare_subscription_tier,
	latest_session_id, latest_session_type, latest_session_occurred_at,
	latest_vehicle_id, latest_vehicle_make, latest_vehicle_model,
	total_stripe_subscriptions, active_stripe_subscriptions, canceled_stripe_subscriptions,
	past_due_stripe_subscriptions, total_autocare_subscriptions, total_sessions, total_vehicles,
	built_at`

const insertQuery = `
	INSERT INTO bi_customer_snapshot (customer_id, email, name, phone, customer_status, tier_name,
		latest_subscription_id, latest_subscription_status, latest_subscription_amount,
		latest_subscription_plan, latest_subscription_created,
		latest_autocare_subscription_id, latest_autocare_subscription_status, latest_autocare_subscription_tier,
		latest_session_id, latest_session_type, latest_session_occurred_at,
		latest_vehicle_id, latest_vehicle_make, latest_vehicle_model,
		total_stripe_subscriptions, active_stripe_subscriptions, canceled_stripe_subscriptions,
		past_due_stripe_subscriptions, total_autocare_subscriptions, total_sessions, total_vehicles,
		built_at)
	VALUES (:customer_id, :email, :name, :phone, :customer_status, :tier_name,
		:latest_subscription_id, :latest_subscription_status, :latest_subscription_amount,
		:latest_subscription_plan, :latest_subscription_created,
		:latest_autocare_subscription_id, :latest_autocare_subscription_status, :latest_autocare_subscription_tier,
		:latest_session_id, :latest_session_type, :latest_session_occurred_at,
		:latest_vehicle_id, :latest_vehicle_make, :latest_vehicle_model,
		:total_stripe_subscriptions, :active_stripe_subscriptions, :canceled_stripe_subscriptions,
		:past_due_stripe_subscriptions, :total_autocare_subscriptions, :total_sessions, :total_vehicles,
		:built_at)
`

// Replace swaps the snapshot table contents in one transaction.
func (r *Repository) Replace(ctx context.Context, snapshots []models.CustomerSnapshot) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.Replace")
	defer span.End()

	txCtx, tx, err := database.GetTx(ctx, r.logger, r.db, nil)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to open snapshot transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(txCtx, "DELETE FROM bi_customer_snapshot"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear customer snapshot")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to clear customer snapshot: %v", err)
	}

	for start := 0; start < len(snapshots); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		if _, err := tx.NamedExecContext(txCtx, insertQuery, snapshots[start:end]); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_start": start}).Error("Failed to insert snapshot rows")
			return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert snapshot rows: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit snapshot rebuild")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to commit snapshot rebuild: %v", err)
	}

	metrics.SnapshotRowsBuilt.Set(float64(len(snapshots)))
	r.logger.WithContext(ctx).WithFields(map[string]any{"rows": len(snapshots)}).Info("Replaced customer snapshot")

	return len(snapshots), nil
}

// Get returns one snapshot row by billing customer id.
func (r *Repository) Get(ctx context.Context, customerID string) (*models.CustomerSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.Get")
	defer span.End()

	query := "SELECT " + allColumns + " FROM bi_customer_snapshot WHERE customer_id = $1"
	var snap models.CustomerSnapshot
	if err := r.db.GetContext(ctx, &snap, query, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "snapshot for customer %s not found", customerID)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"customer_id": customerID}).Error("Failed to get customer snapshot")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get customer snapshot: %v", err)
	}
	return &snap, nil
}

// List returns snapshot rows ordered by customer id for stable paging.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.CustomerSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.List")
	defer span.End()

	query := "SELECT " + allColumns + " FROM bi_customer_snapshot ORDER BY customer_id LIMIT $1 OFFSET $2"
	var snaps []models.CustomerSnapshot
	if err := r.db.SelectContext(ctx, &snaps, query, limit, offset); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list customer snapshots")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list customer snapshots: %v", err)
	}
	return snaps, nil
}
