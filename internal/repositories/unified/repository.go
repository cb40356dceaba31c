// Package unified persists the merged customer view. The table is rebuilt
// wholesale after every sync; collection fields are stored as JSONB so one
// row carries the complete customer picture.
package unified

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

const insertBatchSize = 200

// Repository handles unified customer persistence.
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

type row struct {
	CustomerID         string                                                `db:"customer_id"`
	Email              *string                                               `db:"email"`
	Name               *string                                               `db:"name"`
	Phone              *string                                               `db:"phone"`
	StripeCreated      time.Time                                             `db:"stripe_created"`
	Description        *string                                               `db:"description"`
	Currency           *string                                               `db:"currency"`
	Balance            int64                                                 `db:"balance"`
	Delinquent         bool                                                  `db:"delinquent"`
	AddressLine1       *string                                               `db:"address_line1"`
	AddressLine2       *string                                               `db:"address_line2"`
	AddressCity        *string                                               `db:"address_city"`
	AddressState       *string                                               `db:"address_state"`
	AddressPostalCode  *string                                               `db:"address_postal_code"`
	AddressCountry     *string                                               `db:"address_country"`
	DefaultSource      *string                                               `db:"default_source"`
	InvoicePrefix      *string                                               `db:"invoice_prefix"`
	AutoCareCustomerID *string                                               `db:"autocare_customer_id"`
	TierID             *string                                               `db:"tier_id"`
	TierName           *string                                               `db:"tier_name"`
	AutoCareCreatedAt  *time.Time                                            `db:"autocare_created_at"`
	AutoCareUpdatedAt  *time.Time                                            `db:"autocare_updated_at"`
	StripeSubs         database.JSONB[[]models.StripeSubscription]           `db:"stripe_subscriptions"`
	AutoCareSubs       database.JSONB[[]models.AutoCareSubscriptionWithTier] `db:"autocare_subscriptions"`
	Sessions           database.JSONB[[]models.AutoCareSession]              `db:"sessions"`
	Vehicles           database.JSONB[[]models.AutoCareVehicle]              `db:"vehicles"`
	BuiltAt            time.Time                                             `db:"built_at"`
}

func toRow(c models.UnifiedCustomer) row {
	return row{
		CustomerID:         c.CustomerID,
		Email:              c.Email,
		Name:               c.Name,
		Phone:              c.Phone,
		StripeCreated:      c.StripeCreated,
		Description:        c.Description,
		Currency:           c.Currency,
		Balance:            c.Balance,
		Delinquent:         c.Delinquent,
		AddressLine1:       c.AddressLine1,
		AddressLine2:       c.AddressLine2,
		AddressCity:        c.AddressCity,
		AddressState:       c.AddressState,
		AddressPostalCode:  c.AddressPostalCode,
		AddressCountry:     c.AddressCountry,
		DefaultSource:      c.DefaultSource,
		InvoicePrefix:      c.InvoicePrefix,
		AutoCareCustomerID: c.AutoCareCustomerID,
		TierID:             c.TierID,
		TierName:           c.TierName,
		AutoCareCreatedAt:  c.AutoCareCreatedAt,
		AutoCareUpdatedAt:  c.AutoCareUpdatedAt,
		StripeSubs:         database.JSONB[[]models.StripeSubscription]{Data: c.StripeSubscriptions},
		AutoCareSubs:       database.JSONB[[]models.AutoCareSubscriptionWithTier]{Data: c.AutoCareSubscriptions},
		Sessions:           database.JSONB[[]models.AutoCareSession]{Data: c.Sessions},
		Vehicles:           database.JSONB[[]models.AutoCareVehicle]{Data: c.Vehicles},
		BuiltAt:            c.BuiltAt,
	}
}

func fromRow(r row) models.UnifiedCustomer {
	return models.UnifiedCustomer{
		CustomerID:            r.CustomerID,
		Email:                 r.Email,
		Name:                  r.Name,
		Phone:                 r.Phone,
		StripeCreated:         r.StripeCreated,
		Description:           r.Description,
		Currency:              r.Currency,
		Balance:               r.Balance,
		Delinquent:            r.Delinquent,
		AddressLine1:          r.AddressLine1,
		AddressLine2:          r.AddressLine2,
		AddressCity:           r.AddressCity,
		AddressState:          r.AddressState,
		AddressPostalCode:     r.AddressPostalCode,
		AddressCountry:        r.AddressCountry,
		DefaultSource:         r.DefaultSource,
		InvoicePrefix:         r.InvoicePrefix,
		AutoCareCustomerID:    r.AutoCareCustomerID,
		TierID:                r.TierID,
		TierName:              r.TierName,
		AutoCareCreatedAt:     r.AutoCareCreatedAt,
		AutoCareUpdatedAt:     r.AutoCareUpdatedAt,
		StripeSubscriptions:   r.StripeSubs.GetValue(),
		AutoCareSubscriptions: r.AutoCareSubs.GetValue(),
		Sessions:              r.Sessions.GetValue(),
		Vehicles:              r.Vehicles.GetValue(),
		BuiltAt:               r.BuiltAt,
	}
}

const allColumns = `customer_id, email, name, phone, stripe_created, description, currency,
	balance, delinquent, address_line1, address_line2, address_city, address_state,
	address_postal_code, address_country, default_source, invoice_prefix,
	autocare_customer_id, tier_id, tier_name, autocare_created_at, autocare_updated_at,
	stripe_subscriptions, autocare_subscriptions, sessions, vehicles, built_at`

const insertQuery = `
	INSERT INTO unified_customers (customer_id, email, name, phone, stripe_created, description, currency,
		balance, delinquent, address_line1, address_line2, address_city, address_state,
		address_postal_code, address_country, default_source, invoice_prefix,
		autocare_customer_id, tier_id, tier_name, autocare_created_at, autocare_updated_at,
		stripe_subscriptions, autocare_subscriptions, sessions, vehicles, built_at)
	VALUES (:customer_id, :email, :name, :phone, :stripe_created, :description, :currency,
		:balance, :delinquent, :address_line1, :address_line2, :address_city, :address_state,
		:address_postal_code, :address_country, :default_source, :invoice_prefix,
		:autocare_customer_id, :tier_id, :tier_name, :autocare_created_at, :autocare_updated_at,
		:stripe_subscriptions, :autocare_subscriptions, :sessions, :vehicles, :built_at)
`

// Replace swaps the unified table contents for the given customers in one
// transaction.
func (r *Repository) Replace(ctx context.Context, customers []models.UnifiedCustomer) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "unified.Repository.Replace")
	defer span.End()

	txCtx, tx, err := database.GetTx(ctx, r.logger, r.db, nil)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to open unify transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(txCtx, "DELETE FROM unified_customers"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to clear unified customers")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to clear unified customers: %v", err)
	}

	rows := make([]row, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, toRow(c))
	}

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := tx.NamedExecContext(txCtx, insertQuery, rows[start:end]); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_start": start}).Error("Failed to insert unified customers")
			return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert unified customers: %v", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit unified rebuild")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to commit unified rebuild: %v", err)
	}

	metrics.UnifiedCustomersBuilt.Set(float64(len(rows)))
	r.logger.WithContext(ctx).WithFields(map[string]any{"customers": len(rows)}).Info("Replaced unified customers")

	return len(rows), nil
}

// Get returns one unified customer by billing customer id.
func (r *Repository) Get(ctx context.Context, customerID string) (*models.UnifiedCustomer, error) {
	ctx, span := tracing.StartSpan(ctx, "unified.Repository.Get")
	defer span.End()

	query := "SELECT " + allColumns + " FROM unified_customers WHERE customer_id = $1"
	var result row
	if err := r.db.GetContext(ctx, &result, query, customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "customer %s not found", customerID)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"customer_id": customerID}).Error("Failed to get unified customer")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get unified customer: %v", err)
	}

	customer := fromRow(result)
	return &customer, nil
}

// List returns unified customers ordered by billing creation time, newest
// first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.UnifiedCustomer, error) {
	ctx, span := tracing.StartSpan(ctx, "unified.Repository.List")
	defer span.End()

	query := "SELECT " + allColumns + " FROM unified_customers ORDER BY stripe_created DESC LIMIT $1 OFFSET $2"
	var results []row
	if err := r.db.SelectContext(ctx, &results, query, limit, offset); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list unified customers")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list unified customers: %v", err)
	}

	customers := make([]models.UnifiedCustomer, 0, len(results))
	for _, result := range results {
		customers = append(customers, fromRow(result))
	}
	return customers, nil
}

// Count returns the number of unified customers.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "unified.Repository.Count")
	defer span.End()

	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM unified_customers"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count unified customers")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count unified customers: %v", err)
	}
	return count, nil
}
