package person

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

// Repository handles person persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new person repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying database handle for transactional operations.
func (r *Repository) DB() database.DB {
	return r.db
}

func (r *Repository) q(ctx context.Context) database.Querier {
	return database.QuerierFrom(ctx, r.db)
}

// Get retrieves a person by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "full_name", "preferred_name", "merged_with", "created_at", "updated_at", "deleted_at")
	sb.From("persons")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var person models.Person
	if err := r.q(ctx).GetContext(ctx, &person, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get person")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get person")
	}

	return &person, nil
}

// UpdateFullName sets the person's full name
func (r *Repository) UpdateFullName(ctx context.Context, tenantID, id, fullName string) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.UpdateFullName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("persons")
	sb.Set(
		sb.Assign("full_name", fullName),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update person full name")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update person")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("person %s not found", id))
	}

	return nil
}

// MarkMerged retires a person into the surviving record. The merged_with
// marker is terminal; a person already retired is never re-pointed.
func (r *Repository) MarkMerged(ctx context.Context, tenantID, id, survivorID string) error {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.MarkMerged")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("persons")
	sb.Set(
		sb.Assign("merged_with", survivorID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("merged_with"),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark person as merged")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark person as merged")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("person %s is already merged or does not exist", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"person_id": id, "survivor_id": survivorID}).Info("Marked person as merged")
	return nil
}

// Resolve follows the merged_with chain to the surviving record.
func (r *Repository) Resolve(ctx context.Context, tenantID, id string) (*models.Person, error) {
	ctx, span := tracing.StartSpan(ctx, "person.Repository.Resolve")
	defer span.End()

	person, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	// Merges can chain when a survivor is later merged again.
	for person.IsMerged() {
		next, err := r.Get(ctx, tenantID, *person.MergedWith)
		if err != nil {
			return nil, err
		}
		person = next
	}

	return person, nil
}
