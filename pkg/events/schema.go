package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

// EventType defines the type of event
type EventType string

const (
	EventTypePersonMerged EventType = "person.merged"
	EventTypePartyUpdated EventType = "party.updated"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	TenantID      string    `json:"tenant_id"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// PersonMergedEvent is emitted once a merge has committed. The retired
// person id stays resolvable, so consumers holding it can follow it to the
// survivor.
type PersonMergedEvent struct {
	BaseEvent
	SurvivorID       string   `json:"survivor_id"`
	RetiredID        string   `json:"retired_id"`
	AffectedPartyIDs []string `json:"affected_party_ids,omitempty"`
}

// PartyUpdatedEvent is emitted when a merge advanced a party's lifecycle
// stage.
type PartyUpdatedEvent struct {
	BaseEvent
	PartyID string            `json:"party_id"`
	State   models.PartyState `json:"state"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
