package unsubscription

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles notification unsubscription persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new unsubscription repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// MergeInto moves the retiring person's unsubscriptions onto the survivor.
// First write wins: when the survivor already holds one for a template
// setting, the retiring person's duplicate is discarded.
func (r *Repository) MergeInto(ctx context.Context, tenantID, fromPersonID, toPersonID string) error {
	ctx, span := tracing.StartSpan(ctx, "unsubscription.Repository.MergeInto")
	defer span.End()

	move := `
		UPDATE notification_unsubscriptions u
		SET person_id = $1
		WHERE u.tenant_id = $2
		  AND u.person_id = $3
		  AND NOT EXISTS (
			SELECT 1 FROM notification_unsubscriptions base
			WHERE base.tenant_id = $2
			  AND base.person_id = $1
			  AND base.template_setting_id = u.template_setting_id
		  )
	`
	if _, err := r.q(ctx).ExecContext(ctx, move, toPersonID, tenantID, fromPersonID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to merge unsubscriptions")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to merge unsubscriptions")
	}

	discard := `DELETE FROM notification_unsubscriptions WHERE tenant_id = $1 AND person_id = $2`
	if _, err := r.q(ctx).ExecContext(ctx, discard, tenantID, fromPersonID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to discard duplicate unsubscriptions")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to discard duplicate unsubscriptions")
	}

	return nil
}
