package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/service"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
	"github.com/noah-isme/fsm-visit-api/pkg/response"
)

const maxPlannerBranches = 512

type visitPlanner interface {
	Plan(ctx context.Context, req dto.PlanVisitsRequest) (*dto.PlanningResult, error)
}

// PlannerHandler exposes the bulk allocation endpoint.
type PlannerHandler struct {
	service visitPlanner
}

// NewPlannerHandler constructs the handler.
func NewPlannerHandler(svc *service.PlannerService) *PlannerHandler {
	return &PlannerHandler{service: svc}
}

// Plan godoc
// @Summary Distribute a year of required visits across the calendar
// @Description Set dryRun to preview the allocation without persisting it. Conflicts and per-branch errors are reported in the result body, never as an HTTP error.
// @Tags Planner
// @Accept json
// @Produce json
// @Param payload body dto.PlanVisitsRequest true "Planning payload"
// @Success 200 {object} response.Envelope
// @Router /planner/plan [post]
func (h *PlannerHandler) Plan(c *gin.Context) {
	var req dto.PlanVisitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid planning payload"))
		return
	}
	if len(req.BranchIDs) > maxPlannerBranches {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "branchIds exceeds supported limit"))
		return
	}
	result, err := h.service.Plan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
