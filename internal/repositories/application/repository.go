package application

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

// Repository handles person application persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new application repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// ListByPersonID returns all applications belonging to a person
func (r *Repository) ListByPersonID(ctx context.Context, tenantID, personID string) ([]models.PersonApplication, error) {
	ctx, span := tracing.StartSpan(ctx, "application.Repository.ListByPersonID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "person_id", "party_id", "property_id", "status", "payment_completed", "ended_as_merged_at", "copied_from", "created_at", "updated_at")
	sb.From("person_applications")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_id", personID),
	)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var apps []models.PersonApplication
	if err := r.q(ctx).SelectContext(ctx, &apps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list applications")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list applications")
	}

	return apps, nil
}

// ListByPartyID returns all applications within a party
func (r *Repository) ListByPartyID(ctx context.Context, tenantID, partyID string) ([]models.PersonApplication, error) {
	ctx, span := tracing.StartSpan(ctx, "application.Repository.ListByPartyID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "person_id", "party_id", "property_id", "status", "payment_completed", "ended_as_merged_at", "copied_from", "created_at", "updated_at")
	sb.From("person_applications")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("party_id", partyID),
	)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var apps []models.PersonApplication
	if err := r.q(ctx).SelectContext(ctx, &apps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list party applications")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list party applications")
	}

	return apps, nil
}

// ReassignPerson repoints all of a person's applications to another person
func (r *Repository) ReassignPerson(ctx context.Context, tenantID, fromPersonID, toPersonID string) error {
	ctx, span := tracing.StartSpan(ctx, "application.Repository.ReassignPerson")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("person_applications")
	sb.Set(
		sb.Assign("person_id", toPersonID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_id", fromPersonID),
	)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reassign applications")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign applications")
	}

	return nil
}

// MarkEndedAsMerged supersedes applications at the merge timestamp. The
// marking is append-only metadata; superseded rows are never deleted.
func (r *Repository) MarkEndedAsMerged(ctx context.Context, tenantID string, ids []string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "application.Repository.MarkEndedAsMerged")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("person_applications")
	sb.Set(
		sb.Assign("ended_as_merged_at", at),
		sb.Assign("updated_at", at),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.IsNull("ended_as_merged_at"),
	)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark applications as merged")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark applications as merged")
	}

	return nil
}

// Copy clones an application into another party for another person, keeping
// status and payment state and recording provenance in copied_from.
func (r *Repository) Copy(ctx context.Context, tenantID string, source models.PersonApplication, toPartyID, toPersonID string) (*models.PersonApplication, error) {
	ctx, span := tracing.StartSpan(ctx, "application.Repository.Copy")
	defer span.End()

	now := time.Now().UTC()
	clone := models.PersonApplication{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		PersonID:         toPersonID,
		PartyID:          toPartyID,
		PropertyID:       source.PropertyID,
		Status:           source.Status,
		PaymentCompleted: source.PaymentCompleted,
		CopiedFrom:       &source.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("person_applications")
	sb.Cols("id", "tenant_id", "person_id", "party_id", "property_id", "status", "payment_completed", "copied_from", "created_at", "updated_at")
	sb.Values(clone.ID, clone.TenantID, clone.PersonID, clone.PartyID, clone.PropertyID, clone.Status, clone.PaymentCompleted, clone.CopiedFrom, clone.CreatedAt, clone.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to copy application")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to copy application")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"application_id": clone.ID,
		"copied_from":    source.ID,
		"party_id":       toPartyID,
	}).Info("Copied application")

	return &clone, nil
}
