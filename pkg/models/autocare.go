package models

import (
	"encoding/json"
	"time"
)

// AutoCareCustomer is the flattened projection of an operational-source
// customer profile. BillingCustomerID is the cross-system key matching the
// billing source's customer id.
type AutoCareCustomer struct {
	ID                string    `db:"id" json:"id"`
	BillingCustomerID *string   `db:"billing_customer_id" json:"billing_customer_id,omitempty"`
	Email             *string   `db:"email" json:"email,omitempty"`
	Name              *string   `db:"name" json:"name,omitempty"`
	Phone             *string   `db:"phone" json:"phone,omitempty"`
	TierID            *string   `db:"tier_id" json:"tier_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
	IngestedAt        time.Time `db:"ingested_at" json:"ingested_at"`
}

// AutoCareSubscription is a membership record from the operational source.
type AutoCareSubscription struct {
	ID                string     `db:"id" json:"id"`
	CustomerID        string     `db:"customer_id" json:"customer_id"`
	BillingCustomerID *string    `db:"billing_customer_id" json:"billing_customer_id,omitempty"`
	TierID            *string    `db:"tier_id" json:"tier_id,omitempty"`
	Status            string     `db:"status" json:"status"`
	StartedAt         *time.Time `db:"started_at" json:"started_at,omitempty"`
	ExpiresAt         *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	IngestedAt        time.Time  `db:"ingested_at" json:"ingested_at"`
}

// AutoCareSession is one service-usage event.
type AutoCareSession struct {
	ID                string    `db:"id" json:"id"`
	CustomerID        string    `db:"customer_id" json:"customer_id"`
	BillingCustomerID *string   `db:"billing_customer_id" json:"billing_customer_id,omitempty"`
	VehicleID         *string   `db:"vehicle_id" json:"vehicle_id,omitempty"`
	ServiceType       *string   `db:"service_type" json:"service_type,omitempty"`
	OccurredAt        time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
	IngestedAt        time.Time `db:"ingested_at" json:"ingested_at"`
}

// AutoCareVehicle is an asset associated with an operational-source customer.
type AutoCareVehicle struct {
	ID                string    `db:"id" json:"id"`
	CustomerID        string    `db:"customer_id" json:"customer_id"`
	BillingCustomerID *string   `db:"billing_customer_id" json:"billing_customer_id,omitempty"`
	Make              *string   `db:"make" json:"make,omitempty"`
	Model             *string   `db:"model" json:"model,omitempty"`
	Year              *int      `db:"year" json:"year,omitempty"`
	Plate             *string   `db:"plate" json:"plate,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
	IngestedAt        time.Time `db:"ingested_at" json:"ingested_at"`
}

// AutoCareTier is a membership tier lookup row.
type AutoCareTier struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Level      int             `db:"level" json:"level"`
	Price      *float64        `db:"price" json:"price,omitempty"`
	Perks      json.RawMessage `db:"perks" json:"perks,omitempty"`
	IngestedAt time.Time       `db:"ingested_at" json:"ingested_at"`
}
