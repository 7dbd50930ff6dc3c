package strongmatch

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

// Repository handles strong match persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new strong match repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// GetBetween returns the match between two persons in either orientation, or
// nil when none exists.
func (r *Repository) GetBetween(ctx context.Context, tenantID, firstPersonID, secondPersonID string) (*models.StrongMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "strongmatch.Repository.GetBetween")
	defer span.End()

	query := `
		SELECT id, tenant_id, first_person_id, second_person_id, first_contact_info_id, second_contact_info_id, status, created_at, updated_at
		FROM strong_matches
		WHERE tenant_id = $1
		  AND ((first_person_id = $2 AND second_person_id = $3) OR (first_person_id = $3 AND second_person_id = $2))
		LIMIT 1
	`
	var match models.StrongMatch
	if err := r.q(ctx).GetContext(ctx, &match, query, tenantID, firstPersonID, secondPersonID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get strong match")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get strong match")
	}

	return &match, nil
}

// Confirm marks a match CONFIRMED. Confirmation is terminal; a confirmed or
// dismissed match is never re-resolved.
func (r *Repository) Confirm(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "strongmatch.Repository.Confirm")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("strong_matches")
	sb.Set(
		sb.Assign("status", models.StrongMatchStatusConfirmed),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.Equal("status", models.StrongMatchStatusNone),
	)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to confirm strong match")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to confirm strong match")
	}

	return nil
}

// DeleteUnresolvedForPersons deletes NONE-status matches referencing any of
// the given persons. Resolved matches (confirmed/dismissed) are kept.
func (r *Repository) DeleteUnresolvedForPersons(ctx context.Context, tenantID string, personIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "strongmatch.Repository.DeleteUnresolvedForPersons")
	defer span.End()

	if len(personIDs) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("strong_matches")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("status", models.StrongMatchStatusNone),
		sb.Or(
			sb.In("first_person_id", sqlbuilder.Flatten(personIDs)...),
			sb.In("second_person_id", sqlbuilder.Flatten(personIDs)...),
		),
	)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete unresolved strong matches")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete unresolved strong matches")
	}

	return nil
}

// RegenerateForPerson inserts fresh NONE-status candidates for the person by
// matching contact info value+type against the rest of the tenant's persons.
// The union performed by a merge can introduce collisions that did not exist
// before, so this runs after every merge. Fuzzy matching stays upstream.
func (r *Repository) RegenerateForPerson(ctx context.Context, tenantID, personID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "strongmatch.Repository.RegenerateForPerson")
	defer span.End()

	query := `
		INSERT INTO strong_matches (id, tenant_id, first_person_id, second_person_id, first_contact_info_id, second_contact_info_id, status, created_at, updated_at)
		SELECT gen_random_uuid(), $1, mine.person_id, theirs.person_id, mine.id, theirs.id, 'NONE', $3, $3
		FROM contact_infos mine
		JOIN contact_infos theirs
		  ON theirs.tenant_id = mine.tenant_id
		 AND theirs.type = mine.type
		 AND theirs.value = mine.value
		 AND theirs.person_id <> mine.person_id
		JOIN persons p ON p.id = theirs.person_id AND p.tenant_id = theirs.tenant_id
		WHERE mine.tenant_id = $1
		  AND mine.person_id = $2
		  AND mine.is_spam = FALSE
		  AND p.merged_with IS NULL
		  AND p.deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM strong_matches sm
			WHERE sm.tenant_id = $1
			  AND ((sm.first_person_id = mine.person_id AND sm.second_person_id = theirs.person_id)
			    OR (sm.first_person_id = theirs.person_id AND sm.second_person_id = mine.person_id))
		  )
		ON CONFLICT DO NOTHING
	`
	result, err := r.q(ctx).ExecContext(ctx, query, tenantID, personID, time.Now().UTC())
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to regenerate strong matches")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to regenerate strong matches")
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"person_id": personID, "count": rows}).Info("Regenerated strong match candidates")
	}

	return int(rows), nil
}
