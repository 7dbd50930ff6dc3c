package merge

import (
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Reconciliation is the outcome of dividing two persons' applications after
// a merge.
type Reconciliation struct {
	// Migrated are the retiring person's applications in parties the
	// survivor never belonged to. They move to the survivor unchanged.
	Migrated []models.PersonApplication
	// Survivors are the most advanced application per shared party.
	Survivors []models.PersonApplication
	// Superseded are the remaining shared-party applications, closed with
	// the merge timestamp.
	Superseded []models.PersonApplication
}

// Reconcile divides the applications of both persons across their parties.
// Applications in parties only the retiring person belonged to migrate
// untouched. In parties both belonged to, the most advanced application by
// status survives and the rest are superseded at the merge timestamp. Ties
// keep the earliest in input order, base applications first.
func Reconcile(baseApps, otherApps []models.PersonApplication, sharedPartyIDs []string, now time.Time) Reconciliation {
	shared := make(map[string]bool, len(sharedPartyIDs))
	for _, id := range sharedPartyIDs {
		shared[id] = true
	}

	var result Reconciliation

	result.Migrated = ectolinq.Filter(otherApps, func(app models.PersonApplication) bool {
		return app.IsOpen() && !shared[app.PartyID]
	})

	byParty := make(map[string][]models.PersonApplication)
	for _, app := range append(append([]models.PersonApplication{}, baseApps...), otherApps...) {
		if app.IsOpen() && shared[app.PartyID] {
			byParty[app.PartyID] = append(byParty[app.PartyID], app)
		}
	}

	for _, partyID := range sharedPartyIDs {
		apps := byParty[partyID]
		if len(apps) == 0 {
			continue
		}

		best := 0
		for i := 1; i < len(apps); i++ {
			if apps[i].Status.Ordinal() > apps[best].Status.Ordinal() {
				best = i
			}
		}

		result.Survivors = append(result.Survivors, apps[best])
		for i, app := range apps {
			if i == best {
				continue
			}
			app.EndedAsMergedAt = &now
			result.Superseded = append(result.Superseded, app)
		}
	}

	return result
}

// CopyCandidate pairs a paid, completed application with a base party it
// should be cloned into.
type CopyCandidate struct {
	Application   models.PersonApplication
	TargetPartyID string
}

// CopyCandidates finds the retiring person's paid, completed applications
// whose party targets the same property as a party the survivor already
// belongs to. Each such application is cloned into the survivor's party,
// unless that party already holds one of the survivor's applications. One
// clone per receiving party.
func CopyCandidates(otherApps []models.PersonApplication, otherParties, baseParties []models.Party, baseApps []models.PersonApplication) []CopyCandidate {
	propertyByParty := make(map[string]string, len(otherParties))
	for _, party := range otherParties {
		if party.AssignedPropertyID != nil {
			propertyByParty[party.ID] = *party.AssignedPropertyID
		}
	}

	basePartyHasApp := make(map[string]bool, len(baseApps))
	for _, app := range baseApps {
		basePartyHasApp[app.PartyID] = true
	}

	var candidates []CopyCandidate
	taken := make(map[string]bool)

	for _, app := range otherApps {
		if !app.IsOpen() || !app.IsPaid() || app.Status != models.ApplicationStatusCompleted {
			continue
		}

		propertyID := propertyByParty[app.PartyID]
		if app.PropertyID != nil {
			propertyID = *app.PropertyID
		}
		if propertyID == "" {
			continue
		}

		for _, party := range baseParties {
			if party.ID == app.PartyID {
				continue
			}
			if party.AssignedPropertyID == nil || *party.AssignedPropertyID != propertyID {
				continue
			}
			if basePartyHasApp[party.ID] || taken[party.ID] {
				continue
			}

			taken[party.ID] = true
			candidates = append(candidates, CopyCandidate{
				Application:   app,
				TargetPartyID: party.ID,
			})
		}
	}

	return candidates
}
