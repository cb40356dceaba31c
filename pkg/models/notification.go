package models

// NewCustomerEntry is one row of the new-customer webhook payload. One entry
// is produced per (customer, product) pair; an entry must carry at least one
// of email, phone, or name to be deliverable.
type NewCustomerEntry struct {
	CustomerID string  `json:"customer_id"`
	Email      *string `json:"email,omitempty"`
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	ProductID  *string `json:"product_id,omitempty"`
	PlanName   *string `json:"plan_name,omitempty"`
}

// HasContact reports whether the entry has at least one contact field.
func (e NewCustomerEntry) HasContact() bool {
	return (e.Email != nil && *e.Email != "") ||
		(e.Phone != nil && *e.Phone != "") ||
		(e.Name != nil && *e.Name != "")
}
