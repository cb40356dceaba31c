package processed

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// ListStripeCustomers returns every processed billing customer.
func (r *Repository) ListStripeCustomers(ctx context.Context) ([]models.StripeCustomer, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListStripeCustomers")
	defer span.End()

	query := `
		SELECT id, object, email, name, description, phone, created,
			address_line1, address_line2, address_city, address_state, address_postal_code, address_country,
			currency, balance, delinquent, default_source, invoice_prefix, ingested_at
		FROM processed_stripe_customers
		ORDER BY created DESC
	`
	var customers []models.StripeCustomer
	if err := r.db.SelectContext(ctx, &customers, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list processed stripe customers")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list stripe customers: %v", err)
	}
	return customers, nil
}

// ListStripeSubscriptions returns every processed billing subscription,
// newest first so per-customer groupings are already in latest-first order.
func (r *Repository) ListStripeSubscriptions(ctx context.Context) ([]models.StripeSubscription, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListStripeSubscriptions")
	defer span.End()

	query := `
		SELECT id, object, customer_id, status, created,
			current_period_start, current_period_end, cancel_at_period_end, canceled_at, ended_at,
			amount, currency, interval, interval_count, plan_id, plan_name, product_id,
			collection_method, ingested_at
		FROM processed_stripe_subscriptions
		ORDER BY created DESC, id DESC
	`
	var subs []models.StripeSubscription
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list processed stripe subscriptions")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list stripe subscriptions: %v", err)
	}
	return subs, nil
}

// ListStripeSubscriptionsByCustomer returns one customer's billing
// subscriptions, newest first.
func (r *Repository) ListStripeSubscriptionsByCustomer(ctx context.Context, customerID string) ([]models.StripeSubscription, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListStripeSubscriptionsByCustomer")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(`id, object, customer_id, status, created,
		current_period_start, current_period_end, cancel_at_period_end, canceled_at, ended_at,
		amount, currency, interval, interval_count, plan_id, plan_name, product_id,
		collection_method, ingested_at`)
	sb.From("processed_stripe_subscriptions")
	sb.Where(sb.Equal("customer_id", customerID))
	sb.OrderBy("created DESC", "id DESC")

	query, args := sb.Build()
	var subs []models.StripeSubscription
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"customer_id": customerID}).Error("Failed to list customer stripe subscriptions")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list stripe subscriptions: %v", err)
	}
	return subs, nil
}

// ListAutoCareCustomers returns every processed operational customer.
func (r *Repository) ListAutoCareCustomers(ctx context.Context) ([]models.AutoCareCustomer, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListAutoCareCustomers")
	defer span.End()

	query := `
		SELECT id, billing_customer_id, email, name, phone, tier_id, created_at, updated_at, ingested_at
		FROM processed_autocare_customers
		ORDER BY created_at DESC
	`
	var customers []models.AutoCareCustomer
	if err := r.db.SelectContext(ctx, &customers, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list processed autocare customers")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list autocare customers: %v", err)
	}
	return customers, nil
}

// ListAutoCareSubscriptionsWithTier returns every membership subscription
// joined to its tier detail, newest first.
func (r *Repository) ListAutoCareSubscriptionsWithTier(ctx context.Context) ([]models.AutoCareSubscriptionWithTier, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListAutoCareSubscriptionsWithTier")
	defer span.End()

	query := `
		SELECT s.id, s.customer_id, s.billing_customer_id, s.tier_id, s.status,
			s.started_at, s.expires_at, s.created_at, s.updated_at, s.ingested_at,
			t.name AS tier_name, t.level AS tier_level, t.price AS tier_price
		FROM processed_autocare_subscriptions s
		LEFT JOIN processed_autocare_tiers t ON t.id = s.tier_id
		ORDER BY s.created_at DESC, s.id DESC
	`
	var subs []models.AutoCareSubscriptionWithTier
	if err := r.db.SelectContext(ctx, &subs, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list processed autocare subscriptions")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list autocare subscriptions: %v", err)
	}
	return subs, nil
}

// ListAutoCareSessions returns every service session, most recent first.
func (r *Repository) ListAutoCareSessions(ctx context.Context) ([]models.AutoCareSession, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListAutoCareSessions")
	defer span.End()

	query := `
		SELECT id, customer_id, billing_customer_id, vehicle_id, service_type,
			occurred_at, created_at, updated_at, ingested_at
		FROM processed_autocare_sessions
		ORDER BY occurred_at DESC, id DESC
	`
	var sessions []models.AutoCareSession
	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list processed autocare sessions")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list autocare sessions: %v", err)
	}
	return sessions, nil
}

// ListAutoCareVehicles returns every vehicle, newest first.
func (r *Repository) ListAutoCareVehicles(ctx context.Context) ([]models.AutoCareVehicle, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListAutoCareVehicles")
	defer span.End()

	query := `
		SELECT id, customer_id, billing_customer_id, make, model, year, plate,
			created_at, updated_at, ingested_at
		FROM processed_autocare_vehicles
		ORDER BY created_at DESC, id DESC
	`
	var vehicles []models.AutoCareVehicle
	if err := r.db.SelectContext(ctx, &vehicles, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list processed autocare vehicles")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list autocare vehicles: %v", err)
	}
	return vehicles, nil
}

// ListAutoCareTiers returns the tier lookup set.
func (r *Repository) ListAutoCareTiers(ctx context.Context) ([]models.AutoCareTier, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.ListAutoCareTiers")
	defer span.End()

	query := `
		SELECT id, name, level, price, perks, ingested_at
		FROM processed_autocare_tiers
		ORDER BY level ASC
	`
	var tiers []models.AutoCareTier
	if err := r.db.SelectContext(ctx, &tiers, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list processed autocare tiers")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list autocare tiers: %v", err)
	}
	return tiers, nil
}

// StripeSubscriptionCountRow is one customer's aggregate subscription counts.
type StripeSubscriptionCountRow struct {
	CustomerID string `db:"customer_id"`
	Total      int    `db:"total"`
	Active     int    `db:"active"`
	Canceled   int    `db:"canceled"`
	PastDue    int    `db:"past_due"`
}

// StripeSubscriptionCounts aggregates billing subscription counts per
// customer directly in SQL, independent of any latest-pick logic.
func (r *Repository) StripeSubscriptionCounts(ctx context.Context) (map[string]models.SubscriptionCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "processed.Repository.StripeSubscriptionCounts")
	defer span.End()

	query := `
		SELECT customer_id,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'active') AS active,
			COUNT(*) FILTER (WHERE status = 'canceled') AS canceled,
			COUNT(*) FILTER (WHERE status = 'past_due') AS past_due
		FROM processed_stripe_subscriptions
		GROUP BY customer_id
	`
	var rows []StripeSubscriptionCountRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to aggregate stripe subscription counts")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to aggregate subscription counts: %v", err)
	}

	counts := make(map[string]models.SubscriptionCounts, len(rows))
	for _, row := range rows {
		counts[row.CustomerID] = models.SubscriptionCounts{
			Total:    row.Total,
			Active:   row.Active,
			Canceled: row.Canceled,
			PastDue:  row.PastDue,
		}
	}
	return counts, nil
}
