package flatten

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAutoCareCustomer_NormalizesContactFields(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "ac_1",
		"billing_customer_id": "cus_123",
		"email": "  Driver@Example.com ",
		"name": "Sam  Driver",
		"phone": "555-987-6543",
		"tier_id": "tier_gold",
		"created_at": "2024-01-15T10:00:00Z",
		"updated_at": "2024-02-01T12:00:00Z"
	}`)

	customer, err := AutoCareCustomer(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, "ac_1", customer.ID)
	assert.Equal(t, "cus_123", *customer.BillingCustomerID)
	assert.Equal(t, "driver@example.com", *customer.Email)
	assert.Equal(t, "Sam Driver", *customer.Name)
	assert.Equal(t, "5559876543", *customer.Phone)
	assert.Equal(t, "tier_gold", *customer.TierID)
}

func TestAutoCareCustomer_EmptyBillingIDMapsToNil(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "ac_2",
		"billing_customer_id": "",
		"created_at": "2024-01-15T10:00:00Z"
	}`)

	customer, err := AutoCareCustomer(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Nil(t, customer.BillingCustomerID)
}

func TestAutoCareCustomer_MissingUpdatedAtFallsBackToCreatedAt(t *testing.T) {
	payload := json.RawMessage(`{"id": "ac_3", "created_at": "2024-01-15T10:00:00Z"}`)

	customer, err := AutoCareCustomer(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, customer.CreatedAt, customer.UpdatedAt)
}

func TestAutoCareCustomer_MissingIDFails(t *testing.T) {
	_, err := AutoCareCustomer(json.RawMessage(`{"email": "x@y.com"}`), time.Now().UTC())
	assert.Error(t, err)
}

func TestAutoCareSubscription_Flattens(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "acsub_1",
		"customer_id": "ac_1",
		"billing_customer_id": "cus_123",
		"tier_id": "tier_gold",
		"status": "active",
		"started_at": "2024-01-01T00:00:00Z",
		"expires_at": "2025-01-01T00:00:00Z",
		"created_at": "2024-01-01T00:00:00Z"
	}`)

	sub, err := AutoCareSubscription(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, "acsub_1", sub.ID)
	assert.Equal(t, "ac_1", sub.CustomerID)
	assert.Equal(t, "cus_123", *sub.BillingCustomerID)
	assert.Equal(t, "tier_gold", *sub.TierID)
	assert.Equal(t, "active", sub.Status)
	assert.NotNil(t, sub.StartedAt)
	assert.NotNil(t, sub.ExpiresAt)
}

func TestAutoCareSession_OccurredAtFallsBackToCreatedAt(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "sess_1",
		"customer_id": "ac_1",
		"service_type": "oil_change",
		"created_at": "2024-03-10T09:30:00Z"
	}`)

	session, err := AutoCareSession(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, session.CreatedAt, session.OccurredAt)
	assert.Equal(t, "oil_change", *session.ServiceType)
}

func TestAutoCareSession_ExplicitOccurredAtWins(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "sess_2",
		"customer_id": "ac_1",
		"occurred_at": "2024-03-09T14:00:00Z",
		"created_at": "2024-03-10T09:30:00Z"
	}`)

	session, err := AutoCareSession(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC), session.OccurredAt.UTC())
}

func TestAutoCareVehicle_Flattens(t *testing.T) {
	year := 2021
	payload := json.RawMessage(`{
		"id": "veh_1",
		"customer_id": "ac_1",
		"make": "Toyota",
		"model": "Camry",
		"year": 2021,
		"plate": "ABC123",
		"created_at": "2024-01-20T08:00:00Z"
	}`)

	vehicle, err := AutoCareVehicle(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, "veh_1", vehicle.ID)
	assert.Equal(t, "Toyota", *vehicle.Make)
	assert.Equal(t, "Camry", *vehicle.Model)
	assert.Equal(t, year, *vehicle.Year)
	assert.Equal(t, "ABC123", *vehicle.Plate)
}

func TestAutoCareTier_Flattens(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "tier_gold",
		"name": "Gold",
		"level": 3,
		"price": 49.99,
		"perks": ["free_wash", "priority"]
	}`)

	tier, err := AutoCareTier(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, "tier_gold", tier.ID)
	assert.Equal(t, "Gold", tier.Name)
	assert.Equal(t, 3, tier.Level)
	assert.Equal(t, 49.99, *tier.Price)
	assert.JSONEq(t, `["free_wash", "priority"]`, string(tier.Perks))
}
