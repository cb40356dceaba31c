package models

import "time"

// StripeCustomer is the flattened projection of a billing customer payload.
// Address sub-object fields are promoted to top-level columns.
type StripeCustomer struct {
	ID                string    `db:"id" json:"id"`
	Object            string    `db:"object" json:"object"`
	Email             *string   `db:"email" json:"email,omitempty"`
	Name              *string   `db:"name" json:"name,omitempty"`
	Description       *string   `db:"description" json:"description,omitempty"`
	Phone             *string   `db:"phone" json:"phone,omitempty"`
	Created           time.Time `db:"created" json:"created"`
	AddressLine1      *string   `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2      *string   `db:"address_line2" json:"address_line2,omitempty"`
	AddressCity       *string   `db:"address_city" json:"address_city,omitempty"`
	AddressState      *string   `db:"address_state" json:"address_state,omitempty"`
	AddressPostalCode *string   `db:"address_postal_code" json:"address_postal_code,omitempty"`
	AddressCountry    *string   `db:"address_country" json:"address_country,omitempty"`
	Currency          *string   `db:"currency" json:"currency,omitempty"`
	Balance           int64     `db:"balance" json:"balance"`
	Delinquent        bool      `db:"delinquent" json:"delinquent"`
	DefaultSource     *string   `db:"default_source" json:"default_source,omitempty"`
	InvoicePrefix     *string   `db:"invoice_prefix" json:"invoice_prefix,omitempty"`
	IngestedAt        time.Time `db:"ingested_at" json:"ingested_at"`
}

// Subscription statuses used in status derivation and latest-pick ordering.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// StripeSubscription is the flattened projection of a billing subscription.
// Amount is converted from currency minor units to a decimal value, and the
// plan detail comes from the subscription's first item.
type StripeSubscription struct {
	ID                 string     `db:"id" json:"id"`
	Object             string     `db:"object" json:"object"`
	CustomerID         string     `db:"customer_id" json:"customer_id"`
	Status             string     `db:"status" json:"status"`
	Created            time.Time  `db:"created" json:"created"`
	CurrentPeriodStart *time.Time `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CanceledAt         *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	EndedAt            *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	Amount             *float64   `db:"amount" json:"amount,omitempty"`
	Currency           *string    `db:"currency" json:"currency,omitempty"`
	Interval           *string    `db:"interval" json:"interval,omitempty"`
	IntervalCount      *int       `db:"interval_count" json:"interval_count,omitempty"`
	PlanID             *string    `db:"plan_id" json:"plan_id,omitempty"`
	PlanName           *string    `db:"plan_name" json:"plan_name,omitempty"`
	ProductID          *string    `db:"product_id" json:"product_id,omitempty"`
	CollectionMethod   *string    `db:"collection_method" json:"collection_method,omitempty"`
	IngestedAt         time.Time  `db:"ingested_at" json:"ingested_at"`
}
