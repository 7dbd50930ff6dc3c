package partymember

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles party member persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new party member repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// ListByPersonID returns a person's memberships, optionally only active ones
func (r *Repository) ListByPersonID(ctx context.Context, tenantID, personID string, activeOnly bool) ([]models.PartyMember, error) {
	ctx, span := tracing.StartSpan(ctx, "partymember.Repository.ListByPersonID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "party_id", "person_id", "member_type", "member_state", "end_date", "created_at", "updated_at")
	sb.From("party_members")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_id", personID),
	)
	if activeOnly {
		sb.Where(sb.IsNull("end_date"))
	}
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var members []models.PartyMember
	if err := r.q(ctx).SelectContext(ctx, &members, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list party members")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list party members")
	}

	return members, nil
}

// EndMemberships soft-deletes a person's memberships in the given parties
func (r *Repository) EndMemberships(ctx context.Context, tenantID, personID string, partyIDs []string, endDate time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "partymember.Repository.EndMemberships")
	defer span.End()

	if len(partyIDs) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("party_members")
	sb.Set(
		sb.Assign("end_date", endDate),
		sb.Assign("updated_at", endDate),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_id", personID),
		sb.In("party_id", sqlbuilder.Flatten(partyIDs)...),
		sb.IsNull("end_date"),
	)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to end party memberships")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to end party memberships")
	}

	return nil
}

// ReassignPerson repoints a person's remaining membership rows to another
// person. Rows in excluded parties are left alone (they were ended instead).
func (r *Repository) ReassignPerson(ctx context.Context, tenantID, fromPersonID, toPersonID string, excludePartyIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "partymember.Repository.ReassignPerson")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("party_members")
	sb.Set(
		sb.Assign("person_id", toPersonID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_id", fromPersonID),
	)
	if len(excludePartyIDs) > 0 {
		sb.Where(sb.NotIn("party_id", sqlbuilder.Flatten(excludePartyIDs)...))
	}

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reassign party members")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign party members")
	}

	return nil
}

// UpdateMemberState sets the member state of a person's active membership in a party
func (r *Repository) UpdateMemberState(ctx context.Context, tenantID, partyID, personID string, state models.PartyMemberState) error {
	ctx, span := tracing.StartSpan(ctx, "partymember.Repository.UpdateMemberState")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("party_members")
	sb.Set(
		sb.Assign("member_state", string(state)),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("party_id", partyID),
		sb.Equal("person_id", personID),
		sb.IsNull("end_date"),
	)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update member state")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update member state")
	}

	return nil
}
