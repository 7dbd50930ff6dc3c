package communication

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles communication persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new communication repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// ListByPersonID returns communications referencing a person
func (r *Repository) ListByPersonID(ctx context.Context, tenantID, personID string) ([]models.Communication, error) {
	ctx, span := tracing.StartSpan(ctx, "communication.Repository.ListByPersonID")
	defer span.End()

	query := `
		SELECT id, tenant_id, type, thread_id, person_ids, party_ids, direction, created_at, updated_at
		FROM communications
		WHERE tenant_id = $1 AND $2 = ANY(person_ids)
		ORDER BY created_at ASC
	`
	var comms []models.Communication
	if err := r.q(ctx).SelectContext(ctx, &comms, query, tenantID, personID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list communications")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list communications")
	}

	return comms, nil
}

// MergeThreads reassigns all communications referencing the retiring person to
// the survivor, then unifies the thread id of SMS and CALL conversations
// between the same endpoints. EMAIL thread ids are left untouched.
func (r *Repository) MergeThreads(ctx context.Context, tenantID, basePersonID, otherPersonID string) error {
	ctx, span := tracing.StartSpan(ctx, "communication.Repository.MergeThreads")
	defer span.End()

	now := time.Now().UTC()

	// Repoint the retiring person's references. array_replace keeps ordering;
	// when both persons are already referenced, the duplicate is collapsed.
	reassign := `
		UPDATE communications
		SET person_ids = (
			SELECT ARRAY(
				SELECT DISTINCT unnest(array_replace(person_ids, $1, $2))
			)
		), updated_at = $3
		WHERE tenant_id = $4 AND $1 = ANY(person_ids)
	`
	if _, err := r.q(ctx).ExecContext(ctx, reassign, otherPersonID, basePersonID, now, tenantID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to reassign communications")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign communications")
	}

	// Conversations of the same type between the same party set collapse onto
	// the lowest thread id of the group.
	unify := `
		UPDATE communications c
		SET thread_id = g.unified_thread_id, updated_at = $1
		FROM (
			SELECT type, party_ids, MIN(thread_id) AS unified_thread_id
			FROM communications
			WHERE tenant_id = $2 AND $3 = ANY(person_ids) AND type IN ('SMS', 'CALL')
			GROUP BY type, party_ids
		) g
		WHERE c.tenant_id = $2
		  AND $3 = ANY(c.person_ids)
		  AND c.type = g.type
		  AND c.party_ids = g.party_ids
		  AND c.thread_id <> g.unified_thread_id
	`
	if _, err := r.q(ctx).ExecContext(ctx, unify, now, tenantID, basePersonID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to unify communication threads")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to unify communication threads")
	}

	return nil
}
