package models

import (
	"time"

	"github.com/lib/pq"
)

// CommunicationType is the channel of a communication record
type CommunicationType string

const (
	CommunicationTypeSMS   CommunicationType = "SMS"
	CommunicationTypeCall  CommunicationType = "CALL"
	CommunicationTypeEmail CommunicationType = "EMAIL"
)

// UnifiesThreadOnMerge reports whether merge should force communications of
// this type between the same endpoints onto one thread. EMAIL threads are
// never forcibly unified.
func (t CommunicationType) UnifiesThreadOnMerge() bool {
	return t == CommunicationTypeSMS || t == CommunicationTypeCall
}

// Communication is a message/call/email referencing an ordered set of persons
// and parties. ThreadID groups related messages into one conversation.
type Communication struct {
	ID        string            `json:"id" db:"id"`
	TenantID  string            `json:"tenant_id" db:"tenant_id"`
	Type      CommunicationType `json:"type" db:"type"`
	ThreadID  string            `json:"thread_id" db:"thread_id"`
	PersonIDs pq.StringArray    `json:"person_ids" db:"person_ids"`
	PartyIDs  pq.StringArray    `json:"party_ids" db:"party_ids"`
	Direction string            `json:"direction" db:"direction"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}
