// Package unify builds the merged customer view from the processed
// projection tables. The billing source is the identity spine: one unified
// customer per billing customer, with the operational profile left-joined by
// the shared billing customer id.
package unify

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Store is the read surface the engine needs from the processed tables.
type Store interface {
	ListStripeCustomers(ctx context.Context) ([]models.StripeCustomer, error)
	ListStripeSubscriptions(ctx context.Context) ([]models.StripeSubscription, error)
	ListAutoCareCustomers(ctx context.Context) ([]models.AutoCareCustomer, error)
	ListAutoCareSubscriptionsWithTier(ctx context.Context) ([]models.AutoCareSubscriptionWithTier, error)
	ListAutoCareSessions(ctx context.Context) ([]models.AutoCareSession, error)
	ListAutoCareVehicles(ctx context.Context) ([]models.AutoCareVehicle, error)
	ListAutoCareTiers(ctx context.Context) ([]models.AutoCareTier, error)
}

// Engine assembles unified customers.
type Engine struct {
	store  Store
	logger ectologger.Logger
}

func NewEngine(store Store, logger ectologger.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
	}
}

// Coalesce returns the first non-nil, non-empty value.
func Coalesce(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}

// Build produces one unified customer per billing customer. Operational
// customers with no billing counterpart are skipped and counted; they become
// visible once their profile carries the billing customer id.
func (e *Engine) Build(ctx context.Context) ([]models.UnifiedCustomer, error) {
	ctx, span := tracing.StartSpan(ctx, "unify.Engine.Build")
	defer span.End()

	stripeCustomers, err := e.store.ListStripeCustomers(ctx)
	if err != nil {
		return nil, err
	}
	stripeSubs, err := e.store.ListStripeSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	acCustomers, err := e.store.ListAutoCareCustomers(ctx)
	if err != nil {
		return nil, err
	}
	acSubs, err := e.store.ListAutoCareSubscriptionsWithTier(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := e.store.ListAutoCareSessions(ctx)
	if err != nil {
		return nil, err
	}
	vehicles, err := e.store.ListAutoCareVehicles(ctx)
	if err != nil {
		return nil, err
	}
	tiers, err := e.store.ListAutoCareTiers(ctx)
	if err != nil {
		return nil, err
	}

	tiersByID := make(map[string]models.AutoCareTier, len(tiers))
	for _, t := range tiers {
		tiersByID[t.ID] = t
	}

	// Operational profile per billing customer id. When several profiles
	// claim the same billing customer the most recently updated one wins.
	acByBillingID := make(map[string]models.AutoCareCustomer)
	acIDToBillingID := make(map[string]string, len(acCustomers))
	unmatched := 0
	for _, ac := range acCustomers {
		if ac.BillingCustomerID == nil || *ac.BillingCustomerID == "" {
			unmatched++
			continue
		}
		billingID := *ac.BillingCustomerID
		acIDToBillingID[ac.ID] = billingID
		if existing, ok := acByBillingID[billingID]; !ok || ac.UpdatedAt.After(existing.UpdatedAt) {
			acByBillingID[billingID] = ac
		}
	}

	stripeSubsByCustomer := make(map[string][]models.StripeSubscription)
	for _, s := range stripeSubs {
		stripeSubsByCustomer[s.CustomerID] = append(stripeSubsByCustomer[s.CustomerID], s)
	}

	acSubsByBillingID := make(map[string][]models.AutoCareSubscriptionWithTier)
	for _, s := range acSubs {
		if billingID, ok := resolveBillingID(s.BillingCustomerID, s.CustomerID, acIDToBillingID); ok {
			acSubsByBillingID[billingID] = append(acSubsByBillingID[billingID], s)
		}
	}

	sessionsByBillingID := make(map[string][]models.AutoCareSession)
	for _, s := range sessions {
		if billingID, ok := resolveBillingID(s.BillingCustomerID, s.CustomerID, acIDToBillingID); ok {
			sessionsByBillingID[billingID] = append(sessionsByBillingID[billingID], s)
		}
	}

	vehiclesByBillingID := make(map[string][]models.AutoCareVehicle)
	for _, v := range vehicles {
		if billingID, ok := resolveBillingID(v.BillingCustomerID, v.CustomerID, acIDToBillingID); ok {
			vehiclesByBillingID[billingID] = append(vehiclesByBillingID[billingID], v)
		}
	}

	builtAt := time.Now().UTC()
	unifiedCustomers := make([]models.UnifiedCustomer, 0, len(stripeCustomers))
	for _, sc := range stripeCustomers {
		unified := models.UnifiedCustomer{
			CustomerID:            sc.ID,
			Email:                 sc.Email,
			Name:                  sc.Name,
			Phone:                 sc.Phone,
			StripeCreated:         sc.Created,
			Description:           sc.Description,
			Currency:              sc.Currency,
			Balance:               sc.Balance,
			Delinquent:            sc.Delinquent,
			AddressLine1:          sc.AddressLine1,
			AddressLine2:          sc.AddressLine2,
			AddressCity:           sc.AddressCity,
			AddressState:          sc.AddressState,
			AddressPostalCode:     sc.AddressPostalCode,
			AddressCountry:        sc.AddressCountry,
			DefaultSource:         sc.DefaultSource,
			InvoicePrefix:         sc.InvoicePrefix,
			StripeSubscriptions:   stripeSubsByCustomer[sc.ID],
			AutoCareSubscriptions: acSubsByBillingID[sc.ID],
			Sessions:              sessionsByBillingID[sc.ID],
			Vehicles:              vehiclesByBillingID[sc.ID],
			BuiltAt:               builtAt,
		}

		if ac, ok := acByBillingID[sc.ID]; ok {
			unified.AutoCareCustomerID = &ac.ID
			unified.TierID = ac.TierID
			acCreatedAt := ac.CreatedAt
			acUpdatedAt := ac.UpdatedAt
			unified.AutoCareCreatedAt = &acCreatedAt
			unified.AutoCareUpdatedAt = &acUpdatedAt
			unified.Email = Coalesce(sc.Email, ac.Email)
			unified.Name = Coalesce(sc.Name, ac.Name)
			unified.Phone = Coalesce(sc.Phone, ac.Phone)
			if ac.TierID != nil {
				if tier, ok := tiersByID[*ac.TierID]; ok {
					unified.TierName = &tier.Name
				}
			}
		}

		unifiedCustomers = append(unifiedCustomers, unified)
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"customers":          len(unifiedCustomers),
		"unmatched_autocare": unmatched,
	}).Info("Built unified customer view")

	return unifiedCustomers, nil
}

// resolveBillingID maps an operational record to its billing customer id,
// using the record's own billing id when present and the owning profile's
// mapping otherwise.
func resolveBillingID(billingID *string, customerID string, acIDToBillingID map[string]string) (string, bool) {
	if billingID != nil && *billingID != "" {
		return *billingID, true
	}
	id, ok := acIDToBillingID[customerID]
	return id, ok
}
