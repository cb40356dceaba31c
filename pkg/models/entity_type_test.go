package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityTypeValid(t *testing.T) {
	for _, entityType := range AllEntityTypes() {
		assert.True(t, entityType.Valid(), string(entityType))
	}
	assert.False(t, EntityType("bogus").Valid())
	assert.False(t, EntityType("").Valid())
}

func TestEntityTypeSource(t *testing.T) {
	assert.Equal(t, SourceStripe, EntityTypeStripeCustomers.Source())
	assert.Equal(t, SourceStripe, EntityTypeStripeSubscriptions.Source())
	assert.Equal(t, SourceAutoCare, EntityTypeAutoCareCustomers.Source())
	assert.Equal(t, SourceAutoCare, EntityTypeAutoCareTiers.Source())
}

func TestEntityTypeTables(t *testing.T) {
	assert.Equal(t, "raw_stripe_customers", EntityTypeStripeCustomers.RawTable())
	assert.Equal(t, "processed_autocare_vehicles", EntityTypeAutoCareVehicles.ProcessedTable())
}

func TestNewCustomerEntryHasContact(t *testing.T) {
	email := "a@example.com"
	empty := ""

	assert.True(t, NewCustomerEntry{Email: &email}.HasContact())
	assert.False(t, NewCustomerEntry{Email: &empty}.HasContact())
	assert.False(t, NewCustomerEntry{CustomerID: "cus_1"}.HasContact())
}
