package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func app(id, personID, partyID string, status models.ApplicationStatus) models.PersonApplication {
	return models.PersonApplication{
		ID:       id,
		PersonID: personID,
		PartyID:  partyID,
		Status:   status,
	}
}

func TestReconcile(t *testing.T) {
	now := time.Now().UTC()

	t.Run("other-only party applications migrate untouched", func(t *testing.T) {
		otherApps := []models.PersonApplication{
			app("app-1", "other", "party-solo", models.ApplicationStatusOpened),
		}

		result := Reconcile(nil, otherApps, nil, now)

		require.Len(t, result.Migrated, 1)
		assert.Equal(t, "app-1", result.Migrated[0].ID)
		assert.Nil(t, result.Migrated[0].EndedAsMergedAt)
		assert.Empty(t, result.Superseded)
	})

	t.Run("most advanced application survives a shared party", func(t *testing.T) {
		baseApps := []models.PersonApplication{
			app("base-app", "base", "party-shared", models.ApplicationStatusSent),
		}
		otherApps := []models.PersonApplication{
			app("other-app", "other", "party-shared", models.ApplicationStatusPaid),
		}

		result := Reconcile(baseApps, otherApps, []string{"party-shared"}, now)

		require.Len(t, result.Survivors, 1)
		assert.Equal(t, "other-app", result.Survivors[0].ID)

		require.Len(t, result.Superseded, 1)
		assert.Equal(t, "base-app", result.Superseded[0].ID)
		require.NotNil(t, result.Superseded[0].EndedAsMergedAt)
		assert.Equal(t, now, *result.Superseded[0].EndedAsMergedAt)
	})

	t.Run("status ties keep the earliest in input order", func(t *testing.T) {
		baseApps := []models.PersonApplication{
			app("base-app", "base", "party-shared", models.ApplicationStatusOpened),
		}
		otherApps := []models.PersonApplication{
			app("other-app", "other", "party-shared", models.ApplicationStatusOpened),
		}

		result := Reconcile(baseApps, otherApps, []string{"party-shared"}, now)

		require.Len(t, result.Survivors, 1)
		assert.Equal(t, "base-app", result.Survivors[0].ID)
		require.Len(t, result.Superseded, 1)
		assert.Equal(t, "other-app", result.Superseded[0].ID)
	})

	t.Run("already ended applications are ignored", func(t *testing.T) {
		endedAt := now.Add(-time.Hour)
		ended := app("ended-app", "other", "party-shared", models.ApplicationStatusPaid)
		ended.EndedAsMergedAt = &endedAt

		baseApps := []models.PersonApplication{
			app("base-app", "base", "party-shared", models.ApplicationStatusSent),
		}

		result := Reconcile(baseApps, []models.PersonApplication{ended}, []string{"party-shared"}, now)

		require.Len(t, result.Survivors, 1)
		assert.Equal(t, "base-app", result.Survivors[0].ID)
		assert.Empty(t, result.Superseded)
	})

	t.Run("multiple shared parties reconcile independently", func(t *testing.T) {
		baseApps := []models.PersonApplication{
			app("base-1", "base", "party-1", models.ApplicationStatusCompleted),
			app("base-2", "base", "party-2", models.ApplicationStatusSent),
		}
		otherApps := []models.PersonApplication{
			app("other-1", "other", "party-1", models.ApplicationStatusSent),
			app("other-2", "other", "party-2", models.ApplicationStatusPaid),
			app("other-3", "other", "party-3", models.ApplicationStatusOpened),
		}

		result := Reconcile(baseApps, otherApps, []string{"party-1", "party-2"}, now)

		survivorIDs := make([]string, len(result.Survivors))
		for i, s := range result.Survivors {
			survivorIDs[i] = s.ID
		}
		assert.Equal(t, []string{"base-1", "other-2"}, survivorIDs)

		supersededIDs := make([]string, len(result.Superseded))
		for i, s := range result.Superseded {
			supersededIDs[i] = s.ID
		}
		assert.ElementsMatch(t, []string{"other-1", "base-2"}, supersededIDs)

		require.Len(t, result.Migrated, 1)
		assert.Equal(t, "other-3", result.Migrated[0].ID)
	})
}

func TestCopyCandidates(t *testing.T) {
	propertyA := "property-a"
	propertyB := "property-b"

	paidCompleted := func(id, partyID string) models.PersonApplication {
		return models.PersonApplication{
			ID:               id,
			PersonID:         "other",
			PartyID:          partyID,
			Status:           models.ApplicationStatusCompleted,
			PaymentCompleted: true,
		}
	}

	t.Run("paid completed application copies to matching property party", func(t *testing.T) {
		otherParties := []models.Party{{ID: "other-party", AssignedPropertyID: &propertyA}}
		baseParties := []models.Party{{ID: "base-party", AssignedPropertyID: &propertyA}}

		candidates := CopyCandidates(
			[]models.PersonApplication{paidCompleted("app-1", "other-party")},
			otherParties, baseParties, nil,
		)

		require.Len(t, candidates, 1)
		assert.Equal(t, "app-1", candidates[0].Application.ID)
		assert.Equal(t, "base-party", candidates[0].TargetPartyID)
	})

	t.Run("no copy when properties differ", func(t *testing.T) {
		otherParties := []models.Party{{ID: "other-party", AssignedPropertyID: &propertyA}}
		baseParties := []models.Party{{ID: "base-party", AssignedPropertyID: &propertyB}}

		candidates := CopyCandidates(
			[]models.PersonApplication{paidCompleted("app-1", "other-party")},
			otherParties, baseParties, nil,
		)

		assert.Empty(t, candidates)
	})

	t.Run("no copy when the receiving party already has a base application", func(t *testing.T) {
		otherParties := []models.Party{{ID: "other-party", AssignedPropertyID: &propertyA}}
		baseParties := []models.Party{{ID: "base-party", AssignedPropertyID: &propertyA}}
		baseApps := []models.PersonApplication{
			app("base-app", "base", "base-party", models.ApplicationStatusSent),
		}

		candidates := CopyCandidates(
			[]models.PersonApplication{paidCompleted("app-1", "other-party")},
			otherParties, baseParties, baseApps,
		)

		assert.Empty(t, candidates)
	})

	t.Run("unpaid or incomplete applications never copy", func(t *testing.T) {
		otherParties := []models.Party{{ID: "other-party", AssignedPropertyID: &propertyA}}
		baseParties := []models.Party{{ID: "base-party", AssignedPropertyID: &propertyA}}

		unpaid := paidCompleted("app-1", "other-party")
		unpaid.PaymentCompleted = false
		incomplete := paidCompleted("app-2", "other-party")
		incomplete.Status = models.ApplicationStatusPaid

		candidates := CopyCandidates(
			[]models.PersonApplication{unpaid, incomplete},
			otherParties, baseParties, nil,
		)

		assert.Empty(t, candidates)
	})

	t.Run("one clone per receiving party", func(t *testing.T) {
		otherParties := []models.Party{
			{ID: "other-1", AssignedPropertyID: &propertyA},
			{ID: "other-2", AssignedPropertyID: &propertyA},
		}
		baseParties := []models.Party{{ID: "base-party", AssignedPropertyID: &propertyA}}

		candidates := CopyCandidates(
			[]models.PersonApplication{
				paidCompleted("app-1", "other-1"),
				paidCompleted("app-2", "other-2"),
			},
			otherParties, baseParties, nil,
		)

		require.Len(t, candidates, 1)
		assert.Equal(t, "app-1", candidates[0].Application.ID)
	})
}
