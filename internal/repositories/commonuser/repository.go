package commonuser

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles common user account links
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new common user repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// PromoteIfAbsent moves the retiring person's identity-provider link to the
// survivor when the survivor has none. When the survivor already has a link
// the retiring person's is left on the terminal record.
func (r *Repository) PromoteIfAbsent(ctx context.Context, tenantID, fromPersonID, toPersonID string) error {
	ctx, span := tracing.StartSpan(ctx, "commonuser.Repository.PromoteIfAbsent")
	defer span.End()

	query := `
		UPDATE common_users cu
		SET person_id = $1, updated_at = $2
		WHERE cu.tenant_id = $3
		  AND cu.person_id = $4
		  AND NOT EXISTS (
			SELECT 1 FROM common_users base
			WHERE base.tenant_id = $3 AND base.person_id = $1
		  )
	`
	if _, err := r.q(ctx).ExecContext(ctx, query, toPersonID, time.Now().UTC(), tenantID, fromPersonID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to promote common user link")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to promote common user link")
	}

	return nil
}
