// Package flatten converts raw source payloads into the typed projections
// stored in the processed tables. Flattening is lossy on purpose: the full
// payload stays in the raw audit tables, the processed rows carry only the
// columns the unification and reporting layers read.
package flatten

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/normalizers"
)

type stripeCustomerPayload struct {
	ID          string  `json:"id"`
	Object      string  `json:"object"`
	Email       *string `json:"email"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Phone       *string `json:"phone"`
	Created     int64   `json:"created"`
	Address     *struct {
		Line1      *string `json:"line1"`
		Line2      *string `json:"line2"`
		City       *string `json:"city"`
		State      *string `json:"state"`
		PostalCode *string `json:"postal_code"`
		Country    *string `json:"country"`
	} `json:"address"`
	Currency      *string `json:"currency"`
	Balance       int64   `json:"balance"`
	Delinquent    bool    `json:"delinquent"`
	DefaultSource *string `json:"default_source"`
	InvoicePrefix *string `json:"invoice_prefix"`
}

// StripeCustomer flattens a billing customer payload, promoting the address
// sub-object to top-level columns.
func StripeCustomer(payload json.RawMessage, ingestedAt time.Time) (models.StripeCustomer, error) {
	var p stripeCustomerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.StripeCustomer{}, errors.Wrap(err, "failed to decode stripe customer payload")
	}
	if p.ID == "" {
		return models.StripeCustomer{}, errors.New("stripe customer payload missing id")
	}

	customer := models.StripeCustomer{
		ID:            p.ID,
		Object:        p.Object,
		Email:         normalizers.EmailPtr(p.Email),
		Name:          normalizers.NamePtr(p.Name),
		Description:   p.Description,
		Phone:         normalizers.PhonePtr(p.Phone),
		Created:       time.Unix(p.Created, 0).UTC(),
		Currency:      p.Currency,
		Balance:       p.Balance,
		Delinquent:    p.Delinquent,
		DefaultSource: p.DefaultSource,
		InvoicePrefix: p.InvoicePrefix,
		IngestedAt:    ingestedAt,
	}
	if p.Address != nil {
		customer.AddressLine1 = p.Address.Line1
		customer.AddressLine2 = p.Address.Line2
		customer.AddressCity = p.Address.City
		customer.AddressState = p.Address.State
		customer.AddressPostalCode = p.Address.PostalCode
		customer.AddressCountry = p.Address.Country
	}
	return customer, nil
}

type stripeSubscriptionPayload struct {
	ID                 string `json:"id"`
	Object             string `json:"object"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	Created            int64  `json:"created"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
	EndedAt            int64  `json:"ended_at"`
	Currency           string `json:"currency"`
	CollectionMethod   string `json:"collection_method"`
	Items              struct {
		Data []struct {
			Price struct {
				ID         string  `json:"id"`
				Nickname   *string `json:"nickname"`
				Product    string  `json:"product"`
				UnitAmount *int64  `json:"unit_amount"`
				Currency   string  `json:"currency"`
				Recurring  *struct {
					Interval      string `json:"interval"`
					IntervalCount int    `json:"interval_count"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// StripeSubscription flattens a billing subscription payload. Pricing detail
// comes from the first subscription item, amount converted from currency
// minor units, and plan name falling back to the product id when the price
// has no nickname.
func StripeSubscription(payload json.RawMessage, ingestedAt time.Time) (models.StripeSubscription, error) {
	var p stripeSubscriptionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.StripeSubscription{}, errors.Wrap(err, "failed to decode stripe subscription payload")
	}
	if p.ID == "" {
		return models.StripeSubscription{}, errors.New("stripe subscription payload missing id")
	}

	sub := models.StripeSubscription{
		ID:                 p.ID,
		Object:             p.Object,
		CustomerID:         p.Customer,
		Status:             p.Status,
		Created:            time.Unix(p.Created, 0).UTC(),
		CurrentPeriodStart: epochPtr(p.CurrentPeriodStart),
		CurrentPeriodEnd:   epochPtr(p.CurrentPeriodEnd),
		CancelAtPeriodEnd:  p.CancelAtPeriodEnd,
		CanceledAt:         epochPtr(p.CanceledAt),
		EndedAt:            epochPtr(p.EndedAt),
		Currency:           stringPtr(p.Currency),
		CollectionMethod:   stringPtr(p.CollectionMethod),
		IngestedAt:         ingestedAt,
	}

	if len(p.Items.Data) > 0 {
		price := p.Items.Data[0].Price
		if price.UnitAmount != nil {
			amount := float64(*price.UnitAmount) / 100
			sub.Amount = &amount
		}
		if price.Currency != "" {
			sub.Currency = stringPtr(price.Currency)
		}
		sub.PlanID = stringPtr(price.ID)
		sub.ProductID = stringPtr(price.Product)
		if price.Nickname != nil && *price.Nickname != "" {
			sub.PlanName = price.Nickname
		} else {
			sub.PlanName = stringPtr(price.Product)
		}
		if price.Recurring != nil {
			sub.Interval = stringPtr(price.Recurring.Interval)
			count := price.Recurring.IntervalCount
			sub.IntervalCount = &count
		}
	}

	return sub, nil
}

func epochPtr(unix int64) *time.Time {
	if unix == 0 {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
