package models

// EntityType identifies one syncable record stream from a source system.
type EntityType string

const (
	EntityTypeStripeCustomers       EntityType = "stripe_customers"
	EntityTypeStripeSubscriptions   EntityType = "stripe_subscriptions"
	EntityTypeAutoCareCustomers     EntityType = "autocare_customers"
	EntityTypeAutoCareSubscriptions EntityType = "autocare_subscriptions"
	EntityTypeAutoCareSessions      EntityType = "autocare_sessions"
	EntityTypeAutoCareVehicles      EntityType = "autocare_vehicles"
	EntityTypeAutoCareTiers         EntityType = "autocare_tiers"
)

const (
	SourceStripe   = "stripe"
	SourceAutoCare = "autocare"
)

// AllEntityTypes returns every entity type in sync order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeStripeCustomers,
		EntityTypeStripeSubscriptions,
		EntityTypeAutoCareCustomers,
		EntityTypeAutoCareSubscriptions,
		EntityTypeAutoCareSessions,
		EntityTypeAutoCareVehicles,
		EntityTypeAutoCareTiers,
	}
}

// StripeEntityTypes returns the entity types served by the billing source.
func StripeEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeStripeCustomers,
		EntityTypeStripeSubscriptions,
	}
}

// AutoCareEntityTypes returns the entity types served by the operational source.
func AutoCareEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeAutoCareCustomers,
		EntityTypeAutoCareSubscriptions,
		EntityTypeAutoCareSessions,
		EntityTypeAutoCareVehicles,
		EntityTypeAutoCareTiers,
	}
}

// Valid reports whether the entity type is one of the known streams.
func (e EntityType) Valid() bool {
	switch e {
	case EntityTypeStripeCustomers, EntityTypeStripeSubscriptions,
		EntityTypeAutoCareCustomers, EntityTypeAutoCareSubscriptions,
		EntityTypeAutoCareSessions, EntityTypeAutoCareVehicles,
		EntityTypeAutoCareTiers:
		return true
	}
	return false
}

// Source returns the source system that owns the entity type.
func (e EntityType) Source() string {
	switch e {
	case EntityTypeStripeCustomers, EntityTypeStripeSubscriptions:
		return SourceStripe
	default:
		return SourceAutoCare
	}
}

// RawTable returns the append-only audit table for the entity type.
func (e EntityType) RawTable() string {
	return "raw_" + string(e)
}

// ProcessedTable returns the flattened projection table for the entity type.
func (e EntityType) ProcessedTable() string {
	return "processed_" + string(e)
}
