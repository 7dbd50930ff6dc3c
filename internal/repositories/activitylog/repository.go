package activitylog

import (
	"context"
	"encoding/json"
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

// Repository handles activity log persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new activity log repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// Create appends an audit entry for a party
func (r *Repository) Create(ctx context.Context, tenantID, partyID string, logType models.ActivityLogType, details any, createdBy string) (*models.ActivityLog, error) {
	ctx, span := tracing.StartSpan(ctx, "activitylog.Repository.Create")
	defer span.End()

	payload, err := json.Marshal(details)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to marshal activity log details")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to marshal activity log details")
	}

	entry := models.ActivityLog{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		PartyID:   partyID,
		Type:      logType,
		Details:   payload,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("activity_logs")
	sb.Cols("id", "tenant_id", "party_id", "type", "details", "created_by", "created_at")
	sb.Values(entry.ID, entry.TenantID, entry.PartyID, entry.Type, entry.Details, entry.CreatedBy, entry.CreatedAt)

	query, args := sb.Build()
	if _, err := r.q(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create activity log")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create activity log")
	}

	return &entry, nil
}
