package merge

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
)

// EventPublisher pushes merge outcomes onto the domain event bus.
type EventPublisher interface {
	PersonMerged(ctx context.Context, tenantID, survivorID, retiredID string, partyIDs []string) error
	PartyUpdated(ctx context.Context, tenantID, partyID string, state models.PartyState) error
}

// SearchIndex removes retired identities from duplicate-candidate search.
type SearchIndex interface {
	RemovePerson(ctx context.Context, tenantID, personID string) error
}

type personMergedNotice struct {
	survivorID string
	retiredID  string
	partyIDs   []string
}

type partyUpdateNotice struct {
	partyID string
	state   models.PartyState
}

// NotificationBatch accumulates the side effects a merge wants to announce.
// Nothing leaves the batch until the transaction commits, so observers never
// see a merge that was rolled back.
type NotificationBatch struct {
	personMerged   *personMergedNotice
	partyUpdates   []partyUpdateNotice
	searchRemovals []string
}

// NewNotificationBatch creates an empty batch for a single merge.
func NewNotificationBatch() *NotificationBatch {
	return &NotificationBatch{}
}

// RecordPersonMerged stages the terminal merge event.
func (b *NotificationBatch) RecordPersonMerged(survivorID, retiredID string, partyIDs []string) {
	b.personMerged = &personMergedNotice{
		survivorID: survivorID,
		retiredID:  retiredID,
		partyIDs:   partyIDs,
	}
}

// RecordPartyUpdate stages a party lifecycle change event.
func (b *NotificationBatch) RecordPartyUpdate(partyID string, state models.PartyState) {
	b.partyUpdates = append(b.partyUpdates, partyUpdateNotice{partyID: partyID, state: state})
}

// RecordSearchRemoval stages removal of a retired identity from the search
// index.
func (b *NotificationBatch) RecordSearchRemoval(personID string) {
	b.searchRemovals = append(b.searchRemovals, personID)
}

// Notifier delivers staged batches after commit. Delivery is best effort:
// failures are logged and never fail the merge that already committed.
type Notifier struct {
	publisher EventPublisher
	search    SearchIndex
	logger    ectologger.Logger
}

// NewNotifier creates a notifier over the event bus and search index.
func NewNotifier(publisher EventPublisher, search SearchIndex, logger ectologger.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		search:    search,
		logger:    logger,
	}
}

// Flush delivers everything staged in the batch.
func (n *Notifier) Flush(ctx context.Context, tenantID string, batch *NotificationBatch) {
	log := n.logger.WithContext(ctx)

	if n.search != nil {
		for _, personID := range batch.searchRemovals {
			if err := n.search.RemovePerson(ctx, tenantID, personID); err != nil {
				log.WithError(err).WithField("person_id", personID).Error("Failed to remove merged person from search index")
			}
		}
	}

	if n.publisher == nil {
		return
	}

	if notice := batch.personMerged; notice != nil {
		if err := n.publisher.PersonMerged(ctx, tenantID, notice.survivorID, notice.retiredID, notice.partyIDs); err != nil {
			log.WithError(err).WithFields(map[string]any{
				"survivor_id": notice.survivorID,
				"retired_id":  notice.retiredID,
			}).Error("Failed to publish person merged event")
		}
	}

	for _, update := range batch.partyUpdates {
		if err := n.publisher.PartyUpdated(ctx, tenantID, update.partyID, update.state); err != nil {
			log.WithError(err).WithField("party_id", update.partyID).Error("Failed to publish party updated event")
		}
	}
}
