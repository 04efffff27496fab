package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	"github.com/noah-isme/fsm-visit-api/internal/service"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
	"github.com/noah-isme/fsm-visit-api/pkg/response"
)

type planboardMutator interface {
	ToggleCell(ctx context.Context, req dto.ToggleCellRequest) (*dto.ToggleCellResponse, error)
	MoveVisit(ctx context.Context, id string, req dto.MoveVisitRequest) (*models.Visit, error)
	PlanWeek(ctx context.Context, req dto.PlanWeekRequest) (*dto.PlanWeekResponse, error)
	BulkDelete(ctx context.Context, req dto.BulkDeleteRequest) (*dto.BulkDeleteResponse, error)
}

// PlanboardHandler exposes the interactive grid mutations.
type PlanboardHandler struct {
	service planboardMutator
}

// NewPlanboardHandler constructs the handler.
func NewPlanboardHandler(svc *service.PlanboardService) *PlanboardHandler {
	return &PlanboardHandler{service: svc}
}

// ToggleCell godoc
// @Summary Toggle a (branch, week) grid cell
// @Description Empty cells gain a scheduled visit. Cells holding completed, in-progress or emergency visits require confirm=true to clear.
// @Tags Planboard
// @Accept json
// @Produce json
// @Param payload body dto.ToggleCellRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Router /planboard/toggle [post]
func (h *PlanboardHandler) ToggleCell(c *gin.Context) {
	var req dto.ToggleCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid toggle payload"))
		return
	}
	result, err := h.service.ToggleCell(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MoveVisit godoc
// @Summary Move a visit to another day
// @Tags Planboard
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body dto.MoveVisitRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /planboard/visits/{id}/move [post]
func (h *PlanboardHandler) MoveVisit(c *gin.Context) {
	var req dto.MoveVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	visit, err := h.service.MoveVisit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// PlanWeek godoc
// @Summary Fill every empty branch cell of a week
// @Description Per-branch failures are reported in the response body; the run never aborts on a single branch.
// @Tags Planboard
// @Accept json
// @Produce json
// @Param payload body dto.PlanWeekRequest true "Plan week payload"
// @Success 200 {object} response.Envelope
// @Router /planboard/plan-week [post]
func (h *PlanboardHandler) PlanWeek(c *gin.Context) {
	var req dto.PlanWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan week payload"))
		return
	}
	result, err := h.service.PlanWeek(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkDelete godoc
// @Summary Delete a selection of visits
// @Description Completed, in-progress or emergency visits block the run unless force=true.
// @Tags Planboard
// @Accept json
// @Produce json
// @Param payload body dto.BulkDeleteRequest true "Bulk delete payload"
// @Success 200 {object} response.Envelope
// @Router /planboard/bulk-delete [post]
func (h *PlanboardHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk delete payload"))
		return
	}
	result, err := h.service.BulkDelete(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
