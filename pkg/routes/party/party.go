package party

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/application"
	"github.com/Ramsey-B/clover/internal/repositories/party"
	"github.com/Ramsey-B/clover/internal/repositories/partymember"
	"github.com/Ramsey-B/clover/internal/repositories/task"
	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/merge"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Register registers party routes
func Register(g *echo.Group) {
	g.GET("/merge-order", GetMergeOrder)
	g.GET("/:id", GetParty)
}

// RankedParty is one entry of a person's parties ordered by authority
type RankedParty struct {
	PartyID      string              `json:"party_id"`
	State        models.PartyState   `json:"state"`
	WorkflowName models.WorkflowName `json:"workflow_name"`
	Score        int                 `json:"score"`
}

// GetMergeOrder ranks a person's parties from most to least authoritative,
// the order the party-deduplication workflow consumes them in.
func GetMergeOrder(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	personID := c.QueryParam("person_id")
	if personID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "person_id query parameter is required")
	}

	ctx, memberRepo, err := ectoinject.GetContext[*partymember.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, partyRepo, err := ectoinject.GetContext[*party.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, appRepo, err := ectoinject.GetContext[*application.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, taskRepo, err := ectoinject.GetContext[*task.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}
	ctx, ranker, err := ectoinject.GetContext[*merge.Ranker](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ranker")
	}

	memberships, err := memberRepo.ListByPersonID(ctx, tenantID, personID, true)
	if err != nil {
		return err
	}

	partyIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		partyIDs = append(partyIDs, m.PartyID)
	}
	parties, err := partyRepo.GetByIDs(ctx, tenantID, partyIDs)
	if err != nil {
		return err
	}

	apps, err := appRepo.ListByPersonID(ctx, tenantID, personID)
	if err != nil {
		return err
	}
	paidCompletedByParty := make(map[string]bool)
	for _, app := range apps {
		if app.IsOpen() && app.IsPaid() && app.Status == models.ApplicationStatusCompleted {
			paidCompletedByParty[app.PartyID] = true
		}
	}

	ranks := make([]merge.PartyRank, 0, len(parties))
	for _, p := range parties {
		appointments, err := taskRepo.CountCompletedAppointments(ctx, tenantID, p.ID)
		if err != nil {
			return err
		}
		ranks = append(ranks, merge.PartyRank{
			PartyID:                     p.ID,
			State:                       p.State,
			WorkflowName:                p.WorkflowName,
			HasPaidCompletedApplication: paidCompletedByParty[p.ID],
			HasCompletedAppointment:     appointments > 0,
			UpdatedAt:                   p.UpdatedAt,
		})
	}
	ranker.Sort(ranks)

	result := make([]RankedParty, 0, len(ranks))
	for _, rank := range ranks {
		result = append(result, RankedParty{
			PartyID:      rank.PartyID,
			State:        rank.State,
			WorkflowName: rank.WorkflowName,
			Score:        ranker.Score(rank),
		})
	}

	return c.JSON(http.StatusOK, result)
}

// GetParty returns a party by id
func GetParty(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID := ctxmiddleware.GetTenantID(ctx)
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*party.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	result, err := repo.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
