package models

import (
	"encoding/json"
	"time"
)

// ActivityLogType classifies an audit entry
type ActivityLogType string

const (
	ActivityLogTypePersonsMerged ActivityLogType = "persons_merged"
)

// ActivityLog is an append-only audit entry scoped to a party. Merge entries
// capture before/after snapshots of both identities since the raw rows are
// mutated in place.
type ActivityLog struct {
	ID        string          `json:"id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	PartyID   string          `json:"party_id" db:"party_id"`
	Type      ActivityLogType `json:"type" db:"type"`
	Details   json.RawMessage `json:"details" db:"details"`
	CreatedBy string          `json:"created_by" db:"created_by"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// MergeAuditDetails is the Details payload of a persons_merged entry
type MergeAuditDetails struct {
	SurvivorID      string              `json:"survivor_id"`
	RetiredID       string              `json:"retired_id"`
	SurvivorBefore  PersonAuditSnapshot `json:"survivor_before"`
	RetiredBefore   PersonAuditSnapshot `json:"retired_before"`
	SurvivorAfter   PersonAuditSnapshot `json:"survivor_after"`
	MergedAt        time.Time           `json:"merged_at"`
	SupersededCount int                 `json:"superseded_count"`
}

// PersonAuditSnapshot is the display name and contact info of a person at a
// point in time
type PersonAuditSnapshot struct {
	FullName    string   `json:"full_name"`
	ContactInfo []string `json:"contact_info"`
}
