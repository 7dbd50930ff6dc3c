package models

import "time"

// PartyState is the lifecycle stage of a party. The declaration order is the
// canonical stage ordering used for ranking and base-identity selection.
type PartyState string

const (
	PartyStateContact        PartyState = "CONTACT"
	PartyStateLead           PartyState = "LEAD"
	PartyStateProspect       PartyState = "PROSPECT"
	PartyStateApplicant      PartyState = "APPLICANT"
	PartyStateLease          PartyState = "LEASE"
	PartyStateFutureResident PartyState = "FUTURERESIDENT"
	PartyStateResident       PartyState = "RESIDENT"
	PartyStatePastResident   PartyState = "PASTRESIDENT"
)

var partyStateOrder = map[PartyState]int{
	PartyStateContact:        0,
	PartyStateLead:           1,
	PartyStateProspect:       2,
	PartyStateApplicant:      3,
	PartyStateLease:          4,
	PartyStateFutureResident: 5,
	PartyStateResident:       6,
	PartyStatePastResident:   7,
}

// Ordinal returns the position of the state in the canonical stage ordering.
// Unknown states rank below CONTACT.
func (s PartyState) Ordinal() int {
	ord, ok := partyStateOrder[s]
	if !ok {
		return -1
	}
	return ord
}

// WorkflowName identifies the kind of engagement a party represents
type WorkflowName string

const (
	WorkflowNewLease    WorkflowName = "newLease"
	WorkflowRenewal     WorkflowName = "renewal"
	WorkflowActiveLease WorkflowName = "activeLease"
)

// Party is a sales/lease engagement and the aggregate that owns memberships
type Party struct {
	ID                 string       `json:"id" db:"id"`
	TenantID           string       `json:"tenant_id" db:"tenant_id"`
	State              PartyState   `json:"state" db:"state"`
	WorkflowName       WorkflowName `json:"workflow_name" db:"workflow_name"`
	AssignedPropertyID *string      `json:"assigned_property_id,omitempty" db:"assigned_property_id"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// PartyMemberState mirrors party lifecycle stages applied to a single member
type PartyMemberState string

const (
	PartyMemberStateApplicant PartyMemberState = "APPLICANT"
)

// PartyMember joins a person to a party. At most one active (EndDate = nil)
// row may exist per (person, party) pair.
type PartyMember struct {
	ID          string     `json:"id" db:"id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	PartyID     string     `json:"party_id" db:"party_id"`
	PersonID    string     `json:"person_id" db:"person_id"`
	MemberType  string     `json:"member_type" db:"member_type"`
	MemberState string     `json:"member_state" db:"member_state"`
	EndDate     *time.Time `json:"end_date,omitempty" db:"end_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the membership has not been ended.
func (m *PartyMember) IsActive() bool {
	return m.EndDate == nil
}

// ExternalPartyMemberInfo maps a (person, party) pair to a back-end system
// identifier. A party has at most one active record per person.
type ExternalPartyMemberInfo struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	PersonID   string     `json:"person_id" db:"person_id"`
	PartyID    string     `json:"party_id" db:"party_id"`
	ExternalID string     `json:"external_id" db:"external_id"`
	IsPrimary  bool       `json:"is_primary" db:"is_primary"`
	EndDate    *time.Time `json:"end_date,omitempty" db:"end_date"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
