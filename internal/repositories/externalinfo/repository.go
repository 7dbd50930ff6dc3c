package externalinfo

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles external party member linkage persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new external info repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// ListActiveForPersonInParties returns a person's active linkages in the given parties
func (r *Repository) ListActiveForPersonInParties(ctx context.Context, tenantID, personID string, partyIDs []string) ([]models.ExternalPartyMemberInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "externalinfo.Repository.ListActiveForPersonInParties")
	defer span.End()

	if len(partyIDs) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "person_id", "party_id", "external_id", "is_primary", "end_date", "created_at", "updated_at")
	sb.From("external_party_member_infos")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_id", personID),
		sb.In("party_id", sqlbuilder.Flatten(partyIDs)...),
		sb.IsNull("end_date"),
	)

	query, args := sb.Build()
	var infos []models.ExternalPartyMemberInfo
	if err := r.q(ctx).SelectContext(ctx, &infos, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list external infos")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list external infos")
	}

	return infos, nil
}

// Archive ends the given linkages at the merge timestamp
func (r *Repository) Archive(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "externalinfo.Repository.Archive")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("external_party_member_infos")
	sb.Set(
		sb.Assign("end_date", at),
		sb.Assign("updated_at", at),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.IsNull("end_date"),
	)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to archive external infos")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to archive external infos")
	}

	return nil
}

// Promote copies an archived linkage to another person as the party's active
// record. A party keeps a single active linkage per person.
func (r *Repository) Promote(ctx context.Context, tenantID string, source models.ExternalPartyMemberInfo, toPersonID string) (*models.ExternalPartyMemberInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "externalinfo.Repository.Promote")
	defer span.End()

	now := time.Now().UTC()
	promoted := models.ExternalPartyMemberInfo{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		PersonID:   toPersonID,
		PartyID:    source.PartyID,
		ExternalID: source.ExternalID,
		IsPrimary:  source.IsPrimary,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("external_party_member_infos")
	sb.Cols("id", "tenant_id", "person_id", "party_id", "external_id", "is_primary", "created_at", "updated_at")
	sb.Values(promoted.ID, promoted.TenantID, promoted.PersonID, promoted.PartyID, promoted.ExternalID, promoted.IsPrimary, promoted.CreatedAt, promoted.UpdatedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (tenant_id, party_id, person_id) WHERE end_date IS NULL DO NOTHING"

	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to promote external info")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to promote external info")
	}

	return &promoted, nil
}
