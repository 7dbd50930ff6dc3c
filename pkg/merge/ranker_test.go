package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestRanker_Score(t *testing.T) {
	ranker := NewRanker(DefaultRankWeights())

	tests := []struct {
		name     string
		party    PartyRank
		expected int
	}{
		{
			name:     "bare contact party",
			party:    PartyRank{State: models.PartyStateContact},
			expected: 0,
		},
		{
			name: "applicant with paid completed application",
			party: PartyRank{
				State:                       models.PartyStateApplicant,
				HasPaidCompletedApplication: true,
			},
			expected: 5,
		},
		{
			name: "prospect with completed appointment",
			party: PartyRank{
				State:                   models.PartyStateProspect,
				HasCompletedAppointment: true,
			},
			expected: 3,
		},
		{
			name: "active lease workflow dominates",
			party: PartyRank{
				State:        models.PartyStateResident,
				WorkflowName: models.WorkflowActiveLease,
			},
			expected: 16,
		},
		{
			name: "renewal workflow gets the same boost",
			party: PartyRank{
				State:        models.PartyStateResident,
				WorkflowName: models.WorkflowRenewal,
			},
			expected: 16,
		},
		{
			name: "new lease workflow gets no boost",
			party: PartyRank{
				State:        models.PartyStateLead,
				WorkflowName: models.WorkflowNewLease,
			},
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ranker.Score(tt.party))
		})
	}
}

func TestRanker_Score_CustomWeights(t *testing.T) {
	ranker := NewRanker(RankWeights{
		PaidApplication:      7,
		CompletedAppointment: 3,
		ActiveWorkflow:       50,
	})

	party := PartyRank{
		State:                       models.PartyStateApplicant,
		WorkflowName:                models.WorkflowActiveLease,
		HasPaidCompletedApplication: true,
		HasCompletedAppointment:     true,
	}

	assert.Equal(t, 3+7+3+50, ranker.Score(party))
}

func TestRanker_Compare(t *testing.T) {
	ranker := NewRanker(DefaultRankWeights())
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	stronger := PartyRank{State: models.PartyStateResident, WorkflowName: models.WorkflowActiveLease, UpdatedAt: at}
	weaker := PartyRank{State: models.PartyStateContact, UpdatedAt: at}

	assert.Equal(t, -1, ranker.Compare(stronger, weaker))
	assert.Equal(t, 1, ranker.Compare(weaker, stronger))
	assert.Equal(t, 0, ranker.Compare(weaker, weaker))
}

func TestRanker_Sort(t *testing.T) {
	ranker := NewRanker(DefaultRankWeights())
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)

	parties := []PartyRank{
		{PartyID: "contact", State: models.PartyStateContact, UpdatedAt: newer},
		{PartyID: "active-lease", State: models.PartyStateResident, WorkflowName: models.WorkflowActiveLease, UpdatedAt: older},
		{PartyID: "applicant-paid", State: models.PartyStateApplicant, HasPaidCompletedApplication: true, UpdatedAt: older},
		{PartyID: "lead", State: models.PartyStateLead, UpdatedAt: older},
	}

	ranker.Sort(parties)

	ids := make([]string, len(parties))
	for i, p := range parties {
		ids[i] = p.PartyID
	}
	assert.Equal(t, []string{"active-lease", "applicant-paid", "lead", "contact"}, ids)
}

func TestRanker_Sort_TieBreaksOnUpdatedAt(t *testing.T) {
	ranker := NewRanker(DefaultRankWeights())
	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	parties := []PartyRank{
		{PartyID: "stale", State: models.PartyStateProspect, UpdatedAt: older},
		{PartyID: "fresh", State: models.PartyStateProspect, UpdatedAt: newer},
	}

	ranker.Sort(parties)

	assert.Equal(t, "fresh", parties[0].PartyID)
	assert.Equal(t, "stale", parties[1].PartyID)
}
