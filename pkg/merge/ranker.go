package merge

import (
	"sort"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// RankWeights tunes how much each signal contributes to a party's authority
// score on top of its lifecycle stage ordinal.
type RankWeights struct {
	PaidApplication      int
	CompletedAppointment int
	ActiveWorkflow       int
}

// DefaultRankWeights returns the weights used when no overrides are
// configured.
func DefaultRankWeights() RankWeights {
	return RankWeights{
		PaidApplication:      2,
		CompletedAppointment: 1,
		ActiveWorkflow:       10,
	}
}

// PartyRank carries the signals the ranker scores a party on.
type PartyRank struct {
	PartyID                     string
	State                       models.PartyState
	WorkflowName                models.WorkflowName
	HasPaidCompletedApplication bool
	HasCompletedAppointment     bool
	UpdatedAt                   time.Time
}

// Ranker orders candidate parties from most to least authoritative for the
// party-deduplication workflow.
type Ranker struct {
	weights RankWeights
}

// NewRanker creates a ranker with the given weights.
func NewRanker(weights RankWeights) *Ranker {
	return &Ranker{weights: weights}
}

// Score computes a party's authority score. The lifecycle stage ordinal is
// the base; signals add their configured weight on top.
func (r *Ranker) Score(party PartyRank) int {
	score := party.State.Ordinal()

	if party.HasPaidCompletedApplication {
		score += r.weights.PaidApplication
	}
	if party.HasCompletedAppointment {
		score += r.weights.CompletedAppointment
	}
	if party.WorkflowName == models.WorkflowActiveLease || party.WorkflowName == models.WorkflowRenewal {
		score += r.weights.ActiveWorkflow
	}

	return score
}

// Compare returns -1 when a ranks before b, 1 when b ranks before a, and 0
// when indistinguishable. Higher scores rank first; ties go to the most
// recently updated party.
func (r *Ranker) Compare(a, b PartyRank) int {
	scoreA := r.Score(a)
	scoreB := r.Score(b)
	if scoreA != scoreB {
		if scoreA > scoreB {
			return -1
		}
		return 1
	}

	if a.UpdatedAt.After(b.UpdatedAt) {
		return -1
	}
	if b.UpdatedAt.After(a.UpdatedAt) {
		return 1
	}
	return 0
}

// Sort orders parties in place from most to least authoritative.
func (r *Ranker) Sort(parties []PartyRank) {
	sort.SliceStable(parties, func(i, j int) bool {
		return r.Compare(parties[i], parties[j]) < 0
	})
}
