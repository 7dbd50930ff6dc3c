package models

import "time"

// StrongMatchStatus is the resolution state of a candidate-duplicate pair
type StrongMatchStatus string

const (
	// StrongMatchStatusNone is an unresolved candidate
	StrongMatchStatusNone StrongMatchStatus = "NONE"
	// StrongMatchStatusDismissed means a user rejected the candidate
	StrongMatchStatusDismissed StrongMatchStatus = "DISMISSED"
	// StrongMatchStatusConfirmed is terminal; the pair was merged
	StrongMatchStatusConfirmed StrongMatchStatus = "CONFIRMED"
)

// StrongMatch is a system-detected candidate pair of possibly-duplicate
// persons, keyed by the contact-info entries that collided.
type StrongMatch struct {
	ID                  string            `json:"id" db:"id"`
	TenantID            string            `json:"tenant_id" db:"tenant_id"`
	FirstPersonID       string            `json:"first_person_id" db:"first_person_id"`
	SecondPersonID      string            `json:"second_person_id" db:"second_person_id"`
	FirstContactInfoID  *string           `json:"first_contact_info_id,omitempty" db:"first_contact_info_id"`
	SecondContactInfoID *string           `json:"second_contact_info_id,omitempty" db:"second_contact_info_id"`
	Status              StrongMatchStatus `json:"status" db:"status"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" db:"updated_at"`
}

// References reports whether the match involves the given person.
func (m *StrongMatch) References(personID string) bool {
	return m.FirstPersonID == personID || m.SecondPersonID == personID
}
