package contactinfo

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

// Repository handles contact info persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new contact info repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// ListByPersonID returns all contact info entries for a person
func (r *Repository) ListByPersonID(ctx context.Context, tenantID, personID string) ([]models.ContactInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "contactinfo.Repository.ListByPersonID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "person_id", "type", "value", "is_primary", "is_spam", "metadata", "created_at", "updated_at")
	sb.From("contact_infos")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("person_id", personID),
	)
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var entries []models.ContactInfo
	if err := r.q(ctx).SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list contact infos")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contact infos")
	}

	return entries, nil
}

// ApplyEdits applies manual value/flag corrections to entries owned by the
// given persons. Edits targeting anyone else's entries are rejected.
func (r *Repository) ApplyEdits(ctx context.Context, tenantID string, personIDs []string, edits []models.ContactInfoEdit) error {
	ctx, span := tracing.StartSpan(ctx, "contactinfo.Repository.ApplyEdits")
	defer span.End()

	now := time.Now().UTC()
	for _, edit := range edits {
		sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		sb.Update("contact_infos")

		assignments := []string{sb.Assign("updated_at", now)}
		if edit.Value != "" {
			assignments = append(assignments, sb.Assign("value", edit.Value))
		}
		if edit.IsPrimary != nil {
			assignments = append(assignments, sb.Assign("is_primary", *edit.IsPrimary))
		}
		if edit.IsSpam != nil {
			assignments = append(assignments, sb.Assign("is_spam", *edit.IsSpam))
		}
		sb.Set(assignments...)
		sb.Where(
			sb.Equal("id", edit.ID),
			sb.Equal("tenant_id", tenantID),
			sb.In("person_id", sqlbuilder.Flatten(personIDs)...),
		)

		query, args := sb.Build()
		result, err := r.q(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to apply contact info edit")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply contact info edit")
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "contact info %s does not belong to either person", edit.ID)
		}
	}

	return nil
}

// MergeInto moves the retiring person's entries onto the survivor, keeping the
// union distinct by (type, value). Each entry keeps its own is_primary/is_spam
// flags. Entries whose (type, value) already exists on the survivor stay on
// the retired record, which is terminal after the merge.
func (r *Repository) MergeInto(ctx context.Context, tenantID, fromPersonID, toPersonID string) error {
	ctx, span := tracing.StartSpan(ctx, "contactinfo.Repository.MergeInto")
	defer span.End()

	query := `
		UPDATE contact_infos ci
		SET person_id = $1, updated_at = $2
		WHERE ci.tenant_id = $3
		  AND ci.person_id = $4
		  AND NOT EXISTS (
			SELECT 1 FROM contact_infos base
			WHERE base.tenant_id = $3
			  AND base.person_id = $1
			  AND base.type = ci.type
			  AND base.value = ci.value
		  )
	`
	if _, err := r.q(ctx).ExecContext(ctx, query, toPersonID, time.Now().UTC(), tenantID, fromPersonID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to merge contact infos")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to merge contact infos")
	}

	return nil
}
