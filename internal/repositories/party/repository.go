package party

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles party persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new party repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// Get retrieves a party by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Party, error) {
	ctx, span := tracing.StartSpan(ctx, "party.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "state", "workflow_name", "assigned_property_id", "created_at", "updated_at")
	sb.From("parties")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var party models.Party
	if err := r.q(ctx).GetContext(ctx, &party, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("party %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get party")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get party")
	}

	return &party, nil
}

// GetByIDs retrieves parties by ID list
func (r *Repository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Party, error) {
	ctx, span := tracing.StartSpan(ctx, "party.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "state", "workflow_name", "assigned_property_id", "created_at", "updated_at")
	sb.From("parties")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := sb.Build()
	var parties []models.Party
	if err := r.q(ctx).SelectContext(ctx, &parties, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get parties")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get parties")
	}

	return parties, nil
}

// UpdateState transitions a party's lifecycle state
func (r *Repository) UpdateState(ctx context.Context, tenantID, id string, state models.PartyState) error {
	ctx, span := tracing.StartSpan(ctx, "party.Repository.UpdateState")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("parties")
	sb.Set(
		sb.Assign("state", state),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update party state")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update party state")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("party %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"party_id": id, "state": state}).Info("Updated party state")
	return nil
}
