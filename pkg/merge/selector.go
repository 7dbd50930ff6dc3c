package merge

import (
	"github.com/Ramsey-B/clover/pkg/models"
)

// PersonSnapshot is the read-only view of a person the base selection and
// precondition checks operate on.
type PersonSnapshot struct {
	Person       *models.Person
	Applications []models.PersonApplication
	PartyStates  []models.PartyState
}

// HasApplication reports whether the person holds any open application.
func (s PersonSnapshot) HasApplication() bool {
	for _, app := range s.Applications {
		if app.IsOpen() {
			return true
		}
	}
	return false
}

// HasPaidApplication reports whether the person holds an open application
// with completed payment.
func (s PersonSnapshot) HasPaidApplication() bool {
	for _, app := range s.Applications {
		if app.IsOpen() && app.IsPaid() {
			return true
		}
	}
	return false
}

func (s PersonSnapshot) maxPartyStateOrdinal() int {
	max := -1
	for _, state := range s.PartyStates {
		if ord := state.Ordinal(); ord > max {
			max = ord
		}
	}
	return max
}

// SelectBase picks which of the two persons survives a merge. Rules are
// evaluated in order and the first that distinguishes the pair wins:
//
//  1. only one has an open application: that one
//  2. both have applications: the one with completed payment, first person
//     when both paid
//  3. both have parties: the one whose most advanced party state is further
//     along, first person on equal states
//  4. the one with any party membership when the other has none
//  5. neither has parties: the second person
func SelectBase(first, second PersonSnapshot) string {
	firstApplied := first.HasApplication()
	secondApplied := second.HasApplication()

	if firstApplied != secondApplied {
		if firstApplied {
			return first.Person.ID
		}
		return second.Person.ID
	}

	if firstApplied && secondApplied {
		if second.HasPaidApplication() && !first.HasPaidApplication() {
			return second.Person.ID
		}
		return first.Person.ID
	}

	firstHasParties := len(first.PartyStates) > 0
	secondHasParties := len(second.PartyStates) > 0

	if firstHasParties && secondHasParties {
		if first.maxPartyStateOrdinal() >= second.maxPartyStateOrdinal() {
			return first.Person.ID
		}
		return second.Person.ID
	}

	if firstHasParties {
		return first.Person.ID
	}

	return second.Person.ID
}
