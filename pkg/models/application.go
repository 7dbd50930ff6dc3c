package models

import "time"

// ApplicationStatus is the ordered progress of a rental application
type ApplicationStatus string

const (
	ApplicationStatusNotSent   ApplicationStatus = "NOT_SENT"
	ApplicationStatusSent      ApplicationStatus = "SENT"
	ApplicationStatusOpened    ApplicationStatus = "OPENED"
	ApplicationStatusPaid      ApplicationStatus = "PAID"
	ApplicationStatusCompleted ApplicationStatus = "COMPLETED"
)

var applicationStatusOrder = map[ApplicationStatus]int{
	ApplicationStatusNotSent:   0,
	ApplicationStatusSent:      1,
	ApplicationStatusOpened:    2,
	ApplicationStatusPaid:      3,
	ApplicationStatusCompleted: 4,
}

// Ordinal returns the position of the status in the progress ordering.
// Unknown statuses rank below NOT_SENT.
func (s ApplicationStatus) Ordinal() int {
	ord, ok := applicationStatusOrder[s]
	if !ok {
		return -1
	}
	return ord
}

// PersonApplication is a rental application. EndedAsMergedAt marks an
// application superseded during an identity merge; it is append-only
// metadata, never a deletion.
type PersonApplication struct {
	ID               string            `json:"id" db:"id"`
	TenantID         string            `json:"tenant_id" db:"tenant_id"`
	PersonID         string            `json:"person_id" db:"person_id"`
	PartyID          string            `json:"party_id" db:"party_id"`
	PropertyID       *string           `json:"property_id,omitempty" db:"property_id"`
	Status           ApplicationStatus `json:"status" db:"status"`
	PaymentCompleted bool              `json:"payment_completed" db:"payment_completed"`
	EndedAsMergedAt  *time.Time        `json:"ended_as_merged_at,omitempty" db:"ended_as_merged_at"`
	CopiedFrom       *string           `json:"copied_from,omitempty" db:"copied_from"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// IsOpen reports whether the application has not been superseded by a merge.
func (a *PersonApplication) IsOpen() bool {
	return a.EndedAsMergedAt == nil
}

// IsPaid reports whether the application's fee has been collected.
func (a *PersonApplication) IsPaid() bool {
	return a.PaymentCompleted
}
