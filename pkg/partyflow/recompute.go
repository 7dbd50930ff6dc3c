package partyflow

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/application"
	"github.com/Ramsey-B/clover/internal/repositories/party"
	"github.com/Ramsey-B/clover/internal/repositories/task"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Recomputer re-derives a party's lifecycle stage from its applications,
// workflow and appointment history. Stages only move forward: a party never
// regresses because of a recompute.
type Recomputer struct {
	logger       ectologger.Logger
	parties      *party.Repository
	applications *application.Repository
	tasks        *task.Repository
}

// NewRecomputer creates a recomputer over the party, application and task
// repositories.
func NewRecomputer(logger ectologger.Logger, parties *party.Repository, applications *application.Repository, tasks *task.Repository) *Recomputer {
	return &Recomputer{
		logger:       logger,
		parties:      parties,
		applications: applications,
		tasks:        tasks,
	}
}

// RecomputeState re-derives the party's stage and persists it when it
// advances. It returns the resulting stage and whether it changed.
func (r *Recomputer) RecomputeState(ctx context.Context, tenantID, partyID string) (models.PartyState, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "partyflow.Recomputer.RecomputeState")
	defer span.End()

	current, err := r.parties.Get(ctx, tenantID, partyID)
	if err != nil {
		return "", false, err
	}

	derived, err := r.derive(ctx, tenantID, current)
	if err != nil {
		return "", false, err
	}

	if derived.Ordinal() <= current.State.Ordinal() {
		return current.State, false, nil
	}

	if err := r.parties.UpdateState(ctx, tenantID, partyID, derived); err != nil {
		return "", false, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"party_id":       partyID,
		"previous_state": current.State,
		"new_state":      derived,
	}).Info("Party state advanced")

	return derived, true, nil
}

func (r *Recomputer) derive(ctx context.Context, tenantID string, current *models.Party) (models.PartyState, error) {
	if current.WorkflowName == models.WorkflowActiveLease || current.WorkflowName == models.WorkflowRenewal {
		return models.PartyStateResident, nil
	}

	apps, err := r.applications.ListByPartyID(ctx, tenantID, current.ID)
	if err != nil {
		return "", err
	}
	for _, app := range apps {
		if app.IsOpen() && app.Status.Ordinal() >= models.ApplicationStatusSent.Ordinal() {
			return models.PartyStateApplicant, nil
		}
	}

	appointments, err := r.tasks.CountCompletedAppointments(ctx, tenantID, current.ID)
	if err != nil {
		return "", err
	}
	if appointments > 0 {
		return models.PartyStateProspect, nil
	}

	return current.State, nil
}
