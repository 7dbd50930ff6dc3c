package person

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/communication"
	"github.com/Ramsey-B/clover/internal/repositories/person"
	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/merge"
	"github.com/Ramsey-B/clover/pkg/models"
)

var validate = validator.New()

// Register registers person routes
func Register(g *echo.Group) {
	g.POST("/merge", MergePersons)
	g.GET("/merge/eligibility", GetMergeEligibility)
	g.GET("/:id", GetPerson)
	g.GET("/:id/communications", GetPersonCommunications)
}

// MergePersons consolidates two person records into one
func MergePersons(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req models.MergePersonsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.FirstPersonID == req.SecondPersonID {
		return httperror.NewHTTPError(http.StatusBadRequest, "cannot merge a person with themselves")
	}

	ctx, engine, err := ectoinject.GetContext[*merge.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge engine")
	}

	result, err := engine.Merge(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// MergeEligibilityResponse reports whether two persons can merge right now
type MergeEligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// GetMergeEligibility checks merge preconditions without mutating anything
func GetMergeEligibility(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	firstID := c.QueryParam("first_person_id")
	secondID := c.QueryParam("second_person_id")
	if firstID == "" || secondID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "first_person_id and second_person_id query parameters are required")
	}

	ctx, engine, err := ectoinject.GetContext[*merge.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge engine")
	}

	if err := engine.CanMerge(ctx, firstID, secondID); err != nil {
		if httperror.GetStatusCode(err) == http.StatusPreconditionFailed {
			return c.JSON(http.StatusOK, MergeEligibilityResponse{
				Eligible: false,
				Reason:   err.Error(),
			})
		}
		return err
	}

	return c.JSON(http.StatusOK, MergeEligibilityResponse{Eligible: true})
}

// GetPerson returns a person by id. With resolve=true a retired id is
// followed to its surviving record.
func GetPerson(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*person.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	var result *models.Person
	if c.QueryParam("resolve") == "true" {
		result, err = repo.Resolve(ctx, tenantID, id)
	} else {
		result, err = repo.Get(ctx, tenantID, id)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// GetPersonCommunications returns every communication referencing the person,
// oldest first
func GetPersonCommunications(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*communication.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	comms, err := repo.ListByPersonID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, comms)
}
