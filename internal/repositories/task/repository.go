package task

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles task persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new task repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// CountCompletedAppointments returns the number of completed appointment
// tasks in a party
func (r *Repository) CountCompletedAppointments(ctx context.Context, tenantID, partyID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.CountCompletedAppointments")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("tasks")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("party_id", partyID),
		sb.Equal("category", models.TaskCategoryAppointment),
		sb.Equal("state", models.TaskStateCompleted),
	)

	query, args := sb.Build()
	var count int
	if err := r.q(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count completed appointments")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count completed appointments")
	}

	return count, nil
}

// PruneAppointmentAttendee removes a person (and their party member rows)
// from appointment participant lists in the given parties. Appointments are
// never duplicated or deleted; only the stale reference is pruned.
func (r *Repository) PruneAppointmentAttendee(ctx context.Context, tenantID string, partyIDs []string, personID string, partyMemberIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.PruneAppointmentAttendee")
	defer span.End()

	if len(partyIDs) == 0 {
		return nil
	}

	query := `
		UPDATE tasks
		SET person_ids = array_remove(person_ids, $1),
		    party_member_ids = (
			SELECT COALESCE(array_agg(m), '{}') FROM unnest(party_member_ids) m
			WHERE NOT (m = ANY($2))
		    ),
		    updated_at = $3
		WHERE tenant_id = $4
		  AND party_id = ANY($5)
		  AND category = 'APPOINTMENT'
		  AND state <> 'CANCELED'
		  AND ($1 = ANY(person_ids) OR party_member_ids && $2)
	`
	memberIDs := pq.Array(partyMemberIDs)
	if _, err := r.q(ctx).ExecContext(ctx, query, personID, memberIDs, time.Now().UTC(), tenantID, pq.Array(partyIDs)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to prune appointment attendee")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to prune appointment attendee")
	}

	return nil
}

// CancelCompleteContactInfoTasks cancels pending complete-contact-info tasks
// addressed to any of the given persons. The merge resolves the reason the
// task existed.
func (r *Repository) CancelCompleteContactInfoTasks(ctx context.Context, tenantID string, personIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.CancelCompleteContactInfoTasks")
	defer span.End()

	if len(personIDs) == 0 {
		return nil
	}

	query := `
		UPDATE tasks
		SET state = 'CANCELED', updated_at = $1
		WHERE tenant_id = $2
		  AND name = 'COMPLETE_CONTACT_INFO'
		  AND state = 'ACTIVE'
		  AND person_ids && $3
	`
	if _, err := r.q(ctx).ExecContext(ctx, query, time.Now().UTC(), tenantID, pq.Array(personIDs)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to cancel complete contact info tasks")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to cancel complete contact info tasks")
	}

	return nil
}
