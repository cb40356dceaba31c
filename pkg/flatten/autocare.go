package flatten

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/normalizers"
)

type autocareCustomerPayload struct {
	ID                string    `json:"id"`
	BillingCustomerID *string   `json:"billing_customer_id"`
	Email             *string   `json:"email"`
	Name              *string   `json:"name"`
	Phone             *string   `json:"phone"`
	TierID            *string   `json:"tier_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AutoCareCustomer flattens an operational customer profile. The billing
// customer id is carried through unchanged as the cross-system join key.
func AutoCareCustomer(payload json.RawMessage, ingestedAt time.Time) (models.AutoCareCustomer, error) {
	var p autocareCustomerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.AutoCareCustomer{}, errors.Wrap(err, "failed to decode autocare customer payload")
	}
	if p.ID == "" {
		return models.AutoCareCustomer{}, errors.New("autocare customer payload missing id")
	}

	return models.AutoCareCustomer{
		ID:                p.ID,
		BillingCustomerID: emptyToNil(p.BillingCustomerID),
		Email:             normalizers.EmailPtr(p.Email),
		Name:              normalizers.NamePtr(p.Name),
		Phone:             normalizers.PhonePtr(p.Phone),
		TierID:            emptyToNil(p.TierID),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         fallbackTime(p.UpdatedAt, p.CreatedAt),
		IngestedAt:        ingestedAt,
	}, nil
}

type autocareSubscriptionPayload struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customer_id"`
	BillingCustomerID *string    `json:"billing_customer_id"`
	TierID            *string    `json:"tier_id"`
	Status            string     `json:"status"`
	StartedAt         *time.Time `json:"started_at"`
	ExpiresAt         *time.Time `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AutoCareSubscription flattens a membership record.
func AutoCareSubscription(payload json.RawMessage, ingestedAt time.Time) (models.AutoCareSubscription, error) {
	var p autocareSubscriptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.AutoCareSubscription{}, errors.Wrap(err, "failed to decode autocare subscription payload")
	}
	if p.ID == "" {
		return models.AutoCareSubscription{}, errors.New("autocare subscription payload missing id")
	}

	return models.AutoCareSubscription{
		ID:                p.ID,
		CustomerID:        p.CustomerID,
		BillingCustomerID: emptyToNil(p.BillingCustomerID),
		TierID:            emptyToNil(p.TierID),
		Status:            p.Status,
		StartedAt:         p.StartedAt,
		ExpiresAt:         p.ExpiresAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         fallbackTime(p.UpdatedAt, p.CreatedAt),
		IngestedAt:        ingestedAt,
	}, nil
}

type autocareSessionPayload struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customer_id"`
	BillingCustomerID *string    `json:"billing_customer_id"`
	VehicleID         *string    `json:"vehicle_id"`
	ServiceType       *string    `json:"service_type"`
	OccurredAt        *time.Time `json:"occurred_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AutoCareSession flattens a service-usage event. Sessions with no explicit
// occurrence time fall back to the record creation time so ordering stays
// defined.
func AutoCareSession(payload json.RawMessage, ingestedAt time.Time) (models.AutoCareSession, error) {
	var p autocareSessionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.AutoCareSession{}, errors.Wrap(err, "failed to decode autocare session payload")
	}
	if p.ID == "" {
		return models.AutoCareSession{}, errors.New("autocare session payload missing id")
	}

	occurredAt := p.CreatedAt
	if p.OccurredAt != nil && !p.OccurredAt.IsZero() {
		occurredAt = *p.OccurredAt
	}

	return models.AutoCareSession{
		ID:                p.ID,
		CustomerID:        p.CustomerID,
		BillingCustomerID: emptyToNil(p.BillingCustomerID),
		VehicleID:         emptyToNil(p.VehicleID),
		ServiceType:       p.ServiceType,
		OccurredAt:        occurredAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         fallbackTime(p.UpdatedAt, p.CreatedAt),
		IngestedAt:        ingestedAt,
	}, nil
}

type autocareVehiclePayload struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customer_id"`
	BillingCustomerID *string   `json:"billing_customer_id"`
	Make              *string   `json:"make"`
	Model             *string   `json:"model"`
	Year              *int      `json:"year"`
	Plate             *string   `json:"plate"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AutoCareVehicle flattens a vehicle record.
func AutoCareVehicle(payload json.RawMessage, ingestedAt time.Time) (models.AutoCareVehicle, error) {
	var p autocareVehiclePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.AutoCareVehicle{}, errors.Wrap(err, "failed to decode autocare vehicle payload")
	}
	if p.ID == "" {
		return models.AutoCareVehicle{}, errors.New("autocare vehicle payload missing id")
	}

	return models.AutoCareVehicle{
		ID:                p.ID,
		CustomerID:        p.CustomerID,
		BillingCustomerID: emptyToNil(p.BillingCustomerID),
		Make:              p.Make,
		Model:             p.Model,
		Year:              p.Year,
		Plate:             p.Plate,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         fallbackTime(p.UpdatedAt, p.CreatedAt),
		IngestedAt:        ingestedAt,
	}, nil
}

type autocareTierPayload struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Level int             `json:"level"`
	Price *float64        `json:"price"`
	Perks json.RawMessage `json:"perks"`
}

// AutoCareTier flattens a membership tier lookup row.
func AutoCareTier(payload json.RawMessage, ingestedAt time.Time) (models.AutoCareTier, error) {
	var p autocareTierPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.AutoCareTier{}, errors.Wrap(err, "failed to decode autocare tier payload")
	}
	if p.ID == "" {
		return models.AutoCareTier{}, errors.New("autocare tier payload missing id")
	}

	return models.AutoCareTier{
		ID:         p.ID,
		Name:       p.Name,
		Level:      p.Level,
		Price:      p.Price,
		Perks:      p.Perks,
		IngestedAt: ingestedAt,
	}, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func fallbackTime(primary, fallback time.Time) time.Time {
	if primary.IsZero() {
		return fallback
	}
	return primary
}
