package flatten

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStripeCustomer_PromotesAddressFields(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "cus_123",
		"object": "customer",
		"email": "Jane.Doe@Example.COM",
		"name": "Jane   Doe",
		"phone": "(555) 123-4567",
		"created": 1700000000,
		"balance": 250,
		"delinquent": true,
		"address": {
			"line1": "123 Main St",
			"line2": "Apt 4",
			"city": "Springfield",
			"state": "IL",
			"postal_code": "62701",
			"country": "US"
		}
	}`)

	ingestedAt := time.Now().UTC()
	customer, err := StripeCustomer(payload, ingestedAt)

	assert.NoError(t, err)
	assert.Equal(t, "cus_123", customer.ID)
	assert.Equal(t, "jane.doe@example.com", *customer.Email)
	assert.Equal(t, "Jane Doe", *customer.Name)
	assert.Equal(t, "5551234567", *customer.Phone)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), customer.Created)
	assert.Equal(t, int64(250), customer.Balance)
	assert.True(t, customer.Delinquent)
	assert.Equal(t, "123 Main St", *customer.AddressLine1)
	assert.Equal(t, "Apt 4", *customer.AddressLine2)
	assert.Equal(t, "Springfield", *customer.AddressCity)
	assert.Equal(t, "IL", *customer.AddressState)
	assert.Equal(t, "62701", *customer.AddressPostalCode)
	assert.Equal(t, "US", *customer.AddressCountry)
	assert.Equal(t, ingestedAt, customer.IngestedAt)
}

func TestStripeCustomer_NoAddressLeavesColumnsNil(t *testing.T) {
	payload := json.RawMessage(`{"id": "cus_456", "created": 1700000000}`)

	customer, err := StripeCustomer(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Nil(t, customer.AddressLine1)
	assert.Nil(t, customer.AddressCity)
	assert.Nil(t, customer.AddressCountry)
	assert.Nil(t, customer.Email)
	assert.Nil(t, customer.Name)
}

func TestStripeCustomer_MissingIDFails(t *testing.T) {
	_, err := StripeCustomer(json.RawMessage(`{"email": "a@b.com"}`), time.Now().UTC())
	assert.Error(t, err)
}

func TestStripeCustomer_MalformedPayloadFails(t *testing.T) {
	_, err := StripeCustomer(json.RawMessage(`{"id": `), time.Now().UTC())
	assert.Error(t, err)
}

func TestStripeSubscription_FlattensFirstItemPrice(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "sub_123",
		"customer": "cus_123",
		"status": "active",
		"created": 1700000000,
		"current_period_start": 1700000000,
		"current_period_end": 1702592000,
		"currency": "usd",
		"collection_method": "charge_automatically",
		"items": {
			"data": [
				{
					"price": {
						"id": "price_1",
						"nickname": "Gold Monthly",
						"product": "prod_1",
						"unit_amount": 2999,
						"currency": "eur",
						"recurring": {"interval": "month", "interval_count": 1}
					}
				},
				{
					"price": {"id": "price_2", "product": "prod_2", "unit_amount": 100, "currency": "usd"}
				}
			]
		}
	}`)

	sub, err := StripeSubscription(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, "sub_123", sub.ID)
	assert.Equal(t, "cus_123", sub.CustomerID)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, 29.99, *sub.Amount)
	assert.Equal(t, "price_1", *sub.PlanID)
	assert.Equal(t, "prod_1", *sub.ProductID)
	assert.Equal(t, "Gold Monthly", *sub.PlanName)
	assert.Equal(t, "eur", *sub.Currency)
	assert.Equal(t, "month", *sub.Interval)
	assert.Equal(t, 1, *sub.IntervalCount)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), *sub.CurrentPeriodEnd)
	assert.Nil(t, sub.CanceledAt)
	assert.Nil(t, sub.EndedAt)
}

func TestStripeSubscription_PlanNameFallsBackToProduct(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "sub_456",
		"customer": "cus_456",
		"status": "canceled",
		"created": 1700000000,
		"canceled_at": 1701000000,
		"items": {"data": [{"price": {"id": "price_3", "product": "prod_3", "unit_amount": 500}}]}
	}`)

	sub, err := StripeSubscription(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, "prod_3", *sub.PlanName)
	assert.Equal(t, 5.0, *sub.Amount)
	assert.Equal(t, time.Unix(1701000000, 0).UTC(), *sub.CanceledAt)
}

func TestStripeSubscription_NoItemsLeavesPricingNil(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "sub_789",
		"customer": "cus_789",
		"status": "active",
		"created": 1700000000,
		"currency": "usd",
		"items": {"data": []}
	}`)

	sub, err := StripeSubscription(payload, time.Now().UTC())

	assert.NoError(t, err)
	assert.Nil(t, sub.Amount)
	assert.Nil(t, sub.PlanID)
	assert.Nil(t, sub.PlanName)
	assert.Nil(t, sub.Interval)
	assert.Equal(t, "usd", *sub.Currency)
}

func TestStripeSubscription_MissingIDFails(t *testing.T) {
	_, err := StripeSubscription(json.RawMessage(`{"customer": "cus_1"}`), time.Now().UTC())
	assert.Error(t, err)
}

func TestEpochPtr_ZeroMapsToNil(t *testing.T) {
	assert.Nil(t, epochPtr(0))

	ts := epochPtr(1700000000)
	assert.NotNil(t, ts)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *ts)
}
