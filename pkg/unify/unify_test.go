package unify

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/sage/pkg/models"
)

type fakeStore struct {
	stripeCustomers []models.StripeCustomer
	stripeSubs      []models.StripeSubscription
	acCustomers     []models.AutoCareCustomer
	acSubs          []models.AutoCareSubscriptionWithTier
	sessions        []models.AutoCareSession
	vehicles        []models.AutoCareVehicle
	tiers           []models.AutoCareTier
	err             error
}

func (f *fakeStore) ListStripeCustomers(ctx context.Context) ([]models.StripeCustomer, error) {
	return f.stripeCustomers, f.err
}

func (f *fakeStore) ListStripeSubscriptions(ctx context.Context) ([]models.StripeSubscription, error) {
	return f.stripeSubs, nil
}

func (f *fakeStore) ListAutoCareCustomers(ctx context.Context) ([]models.AutoCareCustomer, error) {
	return f.acCustomers, nil
}

func (f *fakeStore) ListAutoCareSubscriptionsWithTier(ctx context.Context) ([]models.AutoCareSubscriptionWithTier, error) {
	return f.acSubs, nil
}

func (f *fakeStore) ListAutoCareSessions(ctx context.Context) ([]models.AutoCareSession, error) {
	return f.sessions, nil
}

func (f *fakeStore) ListAutoCareVehicles(ctx context.Context) ([]models.AutoCareVehicle, error) {
	return f.vehicles, nil
}

func (f *fakeStore) ListAutoCareTiers(ctx context.Context) ([]models.AutoCareTier, error) {
	return f.tiers, nil
}

func newTestEngine(store Store) *Engine {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewEngine(store, logger)
}

func strPtr(s string) *string {
	return &s
}

func TestCoalesce(t *testing.T) {
	empty := ""
	first := "first"
	second := "second"

	assert.Equal(t, &first, Coalesce(&first, &second))
	assert.Equal(t, &second, Coalesce(nil, &second))
	assert.Equal(t, &second, Coalesce(&empty, &second))
	assert.Nil(t, Coalesce(nil, &empty, nil))
	assert.Nil(t, Coalesce())
}

func TestBuild_OneUnifiedCustomerPerBillingCustomer(t *testing.T) {
	store := &fakeStore{
		stripeCustomers: []models.StripeCustomer{
			{ID: "cus_1", Email: strPtr("a@example.com"), Name: strPtr("Alice")},
			{ID: "cus_2", Email: strPtr("b@example.com")},
		},
		stripeSubs: []models.StripeSubscription{
			{ID: "sub_1", CustomerID: "cus_1", Status: "active"},
			{ID: "sub_2", CustomerID: "cus_1", Status: "canceled"},
		},
	}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.NoError(t, err)
	assert.Len(t, customers, 2)
	assert.Equal(t, "cus_1", customers[0].CustomerID)
	assert.Len(t, customers[0].StripeSubscriptions, 2)
	assert.Empty(t, customers[1].StripeSubscriptions)
	assert.Nil(t, customers[0].AutoCareCustomerID)
}

func TestBuild_CoalescesContactFieldsWithBillingPrecedence(t *testing.T) {
	store := &fakeStore{
		stripeCustomers: []models.StripeCustomer{
			{ID: "cus_1", Email: strPtr("billing@example.com")},
		},
		acCustomers: []models.AutoCareCustomer{
			{
				ID:                "ac_1",
				BillingCustomerID: strPtr("cus_1"),
				Email:             strPtr("operational@example.com"),
				Name:              strPtr("Alice Ops"),
				Phone:             strPtr("5551234567"),
			},
		},
	}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.NoError(t, err)
	assert.Len(t, customers, 1)
	assert.Equal(t, "billing@example.com", *customers[0].Email)
	assert.Equal(t, "Alice Ops", *customers[0].Name)
	assert.Equal(t, "5551234567", *customers[0].Phone)
	assert.Equal(t, "ac_1", *customers[0].AutoCareCustomerID)
}

func TestBuild_CarriesBillingProfileFieldsAndProfileTimestamps(t *testing.T) {
	acCreated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	acUpdated := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		stripeCustomers: []models.StripeCustomer{
			{
				ID:                "cus_1",
				AddressLine1:      strPtr("123 Main St"),
				AddressLine2:      strPtr("Suite 4"),
				AddressCity:       strPtr("Springfield"),
				AddressState:      strPtr("IL"),
				AddressPostalCode: strPtr("62704"),
				AddressCountry:    strPtr("US"),
				DefaultSource:     strPtr("card_123"),
				InvoicePrefix:     strPtr("ABC123"),
			},
			{ID: "cus_no_profile"},
		},
		acCustomers: []models.AutoCareCustomer{
			{ID: "ac_1", BillingCustomerID: strPtr("cus_1"), CreatedAt: acCreated, UpdatedAt: acUpdated},
		},
	}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.NoError(t, err)
	assert.Len(t, customers, 2)
	assert.Equal(t, "123 Main St", *customers[0].AddressLine1)
	assert.Equal(t, "Suite 4", *customers[0].AddressLine2)
	assert.Equal(t, "Springfield", *customers[0].AddressCity)
	assert.Equal(t, "IL", *customers[0].AddressState)
	assert.Equal(t, "62704", *customers[0].AddressPostalCode)
	assert.Equal(t, "US", *customers[0].AddressCountry)
	assert.Equal(t, "card_123", *customers[0].DefaultSource)
	assert.Equal(t, "ABC123", *customers[0].InvoicePrefix)
	assert.Equal(t, acCreated, *customers[0].AutoCareCreatedAt)
	assert.Equal(t, acUpdated, *customers[0].AutoCareUpdatedAt)
	assert.Nil(t, customers[1].AutoCareCreatedAt)
	assert.Nil(t, customers[1].AutoCareUpdatedAt)
}

func TestBuild_ResolvesTierName(t *testing.T) {
	store := &fakeStore{
		stripeCustomers: []models.StripeCustomer{{ID: "cus_1"}},
		acCustomers: []models.AutoCareCustomer{
			{ID: "ac_1", BillingCustomerID: strPtr("cus_1"), TierID: strPtr("tier_gold")},
		},
		tiers: []models.AutoCareTier{
			{ID: "tier_gold", Name: "Gold", Level: 3},
		},
	}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "tier_gold", *customers[0].TierID)
	assert.Equal(t, "Gold", *customers[0].TierName)
}

func TestBuild_UnmatchedOperationalCustomersAreSkipped(t *testing.T) {
	store := &fakeStore{
		stripeCustomers: []models.StripeCustomer{{ID: "cus_1"}},
		acCustomers: []models.AutoCareCustomer{
			{ID: "ac_orphan"},
			{ID: "ac_1", BillingCustomerID: strPtr("cus_1")},
		},
	}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.NoError(t, err)
	assert.Len(t, customers, 1)
	assert.Equal(t, "ac_1", *customers[0].AutoCareCustomerID)
}

func TestBuild_MostRecentlyUpdatedProfileWinsOnCollision(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		stripeCustomers: []models.StripeCustomer{{ID: "cus_1"}},
		acCustomers: []models.AutoCareCustomer{
			{ID: "ac_old", BillingCustomerID: strPtr("cus_1"), UpdatedAt: older},
			{ID: "ac_new", BillingCustomerID: strPtr("cus_1"), UpdatedAt: newer},
		},
	}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "ac_new", *customers[0].AutoCareCustomerID)
}

func TestBuild_OperationalRecordsResolveThroughProfileMapping(t *testing.T) {
	store := &fakeStore{
		stripeCustomers: []models.StripeCustomer{{ID: "cus_1"}},
		acCustomers: []models.AutoCareCustomer{
			{ID: "ac_1", BillingCustomerID: strPtr("cus_1")},
		},
		acSubs: []models.AutoCareSubscriptionWithTier{
			{AutoCareSubscription: models.AutoCareSubscription{ID: "acsub_1", CustomerID: "ac_1", Status: "active"}},
		},
		sessions: []models.AutoCareSession{
			{ID: "sess_1", CustomerID: "ac_1"},
			{ID: "sess_direct", CustomerID: "ac_other", BillingCustomerID: strPtr("cus_1")},
			{ID: "sess_orphan", CustomerID: "ac_unknown"},
		},
		vehicles: []models.AutoCareVehicle{
			{ID: "veh_1", CustomerID: "ac_1"},
		},
	}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.NoError(t, err)
	assert.Len(t, customers[0].AutoCareSubscriptions, 1)
	assert.Len(t, customers[0].Sessions, 2)
	assert.Len(t, customers[0].Vehicles, 1)
}

func TestBuild_StoreErrorPropagates(t *testing.T) {
	store := &fakeStore{err: assert.AnError}

	customers, err := newTestEngine(store).Build(context.Background())

	assert.Error(t, err)
	assert.Nil(t, customers)
}
