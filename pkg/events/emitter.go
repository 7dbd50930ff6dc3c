// Package events handles event emission for person merge outcomes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes merge domain events. Delivery is at most once; the
// engine never retries a failed publish.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// PersonMerged emits a person.merged event keyed by the survivor
func (e *Emitter) PersonMerged(ctx context.Context, tenantID, survivorID, retiredID string, partyIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.PersonMerged")
	defer span.End()

	event := PersonMergedEvent{
		BaseEvent:        NewBaseEvent(EventTypePersonMerged, tenantID),
		SurvivorID:       survivorID,
		RetiredID:        retiredID,
		AffectedPartyIDs: partyIDs,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := e.producer.Publish(ctx, survivorID, string(EventTypePersonMerged), tenantID, payload); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit person.merged event")
		return err
	}

	return nil
}

// PartyUpdated emits a party.updated event keyed by the party
func (e *Emitter) PartyUpdated(ctx context.Context, tenantID, partyID string, state models.PartyState) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.PartyUpdated")
	defer span.End()

	event := PartyUpdatedEvent{
		BaseEvent: NewBaseEvent(EventTypePartyUpdated, tenantID),
		PartyID:   partyID,
		State:     state,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := e.producer.Publish(ctx, partyID, string(EventTypePartyUpdated), tenantID, payload); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit party.updated event")
		return err
	}

	return nil
}
