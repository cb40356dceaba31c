package models

import "time"

// CustomerStatus is the derived lifecycle state surfaced to reporting tools.
type CustomerStatus string

const (
	CustomerStatusActive         CustomerStatus = "Active"
	CustomerStatusPastDue        CustomerStatus = "Past Due"
	CustomerStatusChurned        CustomerStatus = "Churned"
	CustomerStatusNoSubscription CustomerStatus = "No Subscription"
)

// SubscriptionCounts aggregates billing subscriptions per customer,
// computed independently of the latest-subscription pick.
type SubscriptionCounts struct {
	Total    int `db:"total" json:"total"`
	Active   int `db:"active" json:"active"`
	Canceled int `db:"canceled" json:"canceled"`
	PastDue  int `db:"past_due" json:"past_due"`
}

// CustomerSnapshot is one fully flat BI row per unified customer: identity,
// derived status, latest sub-entity values, and independent counts. No
// arrays, for direct consumption by reporting tools.
type CustomerSnapshot struct {
	CustomerID     string         `db:"customer_id" json:"customer_id"`
	Email          *string        `db:"email" json:"email,omitempty"`
	Name           *string        `db:"name" json:"name,omitempty"`
	Phone          *string        `db:"phone" json:"phone,omitempty"`
	CustomerStatus CustomerStatus `db:"customer_status" json:"customer_status"`
	TierName       *string        `db:"tier_name" json:"tier_name,omitempty"`

	LatestSubscriptionID      *string    `db:"latest_subscription_id" json:"latest_subscription_id,omitempty"`
	LatestSubscriptionStatus  *string    `db:"latest_subscription_status" json:"latest_subscription_status,omitempty"`
	LatestSubscriptionAmount  *float64   `db:"latest_subscription_amount" json:"latest_subscription_amount,omitempty"`
	LatestSubscriptionPlan    *string    `db:"latest_subscription_plan" json:"latest_subscription_plan,omitempty"`
	LatestSubscriptionCreated *time.Time `db:"latest_subscription_created" json:"latest_subscription_created,omitempty"`

	LatestAutoCareSubscriptionID     *string `db:"latest_autocare_subscription_id" json:"latest_autocare_subscription_id,omitempty"`
	LatestAutoCareSubscriptionStatus *string `db:"latest_autocare_subscription_status" json:"latest_autocare_subscription_status,omitempty"`
	LatestAutoCareSubscriptionTier   *string `db:"latest_autocare_subscription_tier" json:"latest_autocare_subscription_tier,omitempty"`

	LatestSessionID         *string    `db:"latest_session_id" json:"latest_session_id,omitempty"`
	LatestSessionType       *string    `db:"latest_session_type" json:"latest_session_type,omitempty"`
	LatestSessionOccurredAt *time.Time `db:"latest_session_occurred_at" json:"latest_session_occurred_at,omitempty"`

	LatestVehicleID    *string `db:"latest_vehicle_id" json:"latest_vehicle_id,omitempty"`
	LatestVehicleMake  *string `db:"latest_vehicle_make" json:"latest_vehicle_make,omitempty"`
	LatestVehicleModel *string `db:"latest_vehicle_model" json:"latest_vehicle_model,omitempty"`

	TotalStripeSubscriptions    int `db:"total_stripe_subscriptions" json:"total_stripe_subscriptions"`
	ActiveStripeSubscriptions   int `db:"active_stripe_subscriptions" json:"active_stripe_subscriptions"`
	CanceledStripeSubscriptions int `db:"canceled_stripe_subscriptions" json:"canceled_stripe_subscriptions"`
	PastDueStripeSubscriptions  int `db:"past_due_stripe_subscriptions" json:"past_due_stripe_subscriptions"`
	TotalAutoCareSubscriptions  int `db:"total_autocare_subscriptions" json:"total_autocare_subscriptions"`
	TotalSessions               int `db:"total_sessions" json:"total_sessions"`
	TotalVehicles               int `db:"total_vehicles" json:"total_vehicles"`

	BuiltAt time.Time `db:"built_at" json:"built_at"`
}
