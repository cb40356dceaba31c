package models

import "time"

// AutoCareSubscriptionWithTier joins a membership subscription to its tier
// detail for the unified collections.
type AutoCareSubscriptionWithTier struct {
	AutoCareSubscription
	TierName  *string  `db:"tier_name" json:"tier_name,omitempty"`
	TierLevel *int     `db:"tier_level" json:"tier_level,omitempty"`
	TierPrice *float64 `db:"tier_price" json:"tier_price,omitempty"`
}

// UnifiedCustomer is the single merged view of a customer across both
// sources, keyed by the billing customer id. Customers that exist only in
// the operational source are not represented; the billing source is the
// authoritative identity source.
type UnifiedCustomer struct {
	CustomerID string `json:"customer_id"`

	// Contact fields coalesced with billing-source precedence.
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`

	// Billing-source profile fields.
	StripeCreated     time.Time `json:"stripe_created"`
	Description       *string   `json:"description,omitempty"`
	Currency          *string   `json:"currency,omitempty"`
	Balance           int64     `json:"balance"`
	Delinquent        bool      `json:"delinquent"`
	AddressLine1      *string   `json:"address_line1,omitempty"`
	AddressLine2      *string   `json:"address_line2,omitempty"`
	AddressCity       *string   `json:"address_city,omitempty"`
	AddressState      *string   `json:"address_state,omitempty"`
	AddressPostalCode *string   `json:"address_postal_code,omitempty"`
	AddressCountry    *string   `json:"address_country,omitempty"`
	DefaultSource     *string   `json:"default_source,omitempty"`
	InvoicePrefix     *string   `json:"invoice_prefix,omitempty"`

	// Operational-source profile fields; nil when no profile matched.
	AutoCareCustomerID *string    `json:"autocare_customer_id,omitempty"`
	TierID             *string    `json:"tier_id,omitempty"`
	TierName           *string    `json:"tier_name,omitempty"`
	AutoCareCreatedAt  *time.Time `json:"autocare_created_at,omitempty"`
	AutoCareUpdatedAt  *time.Time `json:"autocare_updated_at,omitempty"`

	// Aggregated collections, ordered most recent first. May be empty.
	StripeSubscriptions   []StripeSubscription           `json:"stripe_subscriptions"`
	AutoCareSubscriptions []AutoCareSubscriptionWithTier `json:"autocare_subscriptions"`
	Sessions              []AutoCareSession              `json:"sessions"`
	Vehicles              []AutoCareVehicle              `json:"vehicles"`

	BuiltAt time.Time `json:"built_at"`
}
