package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	"github.com/noah-isme/fsm-visit-api/internal/service"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
	"github.com/noah-isme/fsm-visit-api/pkg/response"
)

type visitManager interface {
	List(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int, error)
	Get(ctx context.Context, id string) (*models.Visit, error)
	VisitsForBranch(ctx context.Context, branchID string) ([]models.Visit, error)
	Create(ctx context.Context, req dto.CreateVisitRequest) (*models.Visit, error)
	Update(ctx context.Context, id string, req dto.UpdateVisitRequest) (*models.Visit, error)
	Complete(ctx context.Context, id string, req dto.CompleteVisitRequest) (*models.Visit, error)
	Cancel(ctx context.Context, id string) (*models.Visit, error)
	Reschedule(ctx context.Context, id string, req dto.RescheduleVisitRequest) (*models.Visit, error)
	Delete(ctx context.Context, id string) error
}

// VisitHandler exposes visit record CRUD and lifecycle endpoints.
type VisitHandler struct {
	service visitManager
}

// NewVisitHandler constructs the handler.
func NewVisitHandler(svc *service.VisitService) *VisitHandler {
	return &VisitHandler{service: svc}
}

// List godoc
// @Summary List visits
// @Tags Visits
// @Produce json
// @Param branchId query string false "Branch filter"
// @Param contractId query string false "Contract filter"
// @Param companyId query string false "Company filter"
// @Param type query string false "Visit type filter"
// @Param status query string false "Visit status filter"
// @Param from query string false "Scheduled on or after (RFC3339)"
// @Param to query string false "Scheduled on or before (RFC3339)"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /visits [get]
func (h *VisitHandler) List(c *gin.Context) {
	filter := models.VisitFilter{
		BranchID:   c.Query("branchId"),
		ContractID: c.Query("contractId"),
		CompanyID:  c.Query("companyId"),
		Type:       models.VisitType(c.Query("type")),
		Status:     models.VisitStatus(c.Query("status")),
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
			return
		}
		filter.To = &to
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	visits, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visits, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get one visit
// @Tags Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} response.Envelope
// @Router /visits/{id} [get]
func (h *VisitHandler) Get(c *gin.Context) {
	visit, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// ByBranch godoc
// @Summary List visits of a branch
// @Tags Visits
// @Produce json
// @Param id path string true "Branch ID"
// @Success 200 {object} response.Envelope
// @Router /branches/{id}/visits [get]
func (h *VisitHandler) ByBranch(c *gin.Context) {
	visits, err := h.service.VisitsForBranch(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visits, nil)
}

// Create godoc
// @Summary Create a visit
// @Tags Visits
// @Accept json
// @Produce json
// @Param payload body dto.CreateVisitRequest true "Visit payload"
// @Success 201 {object} response.Envelope
// @Router /visits [post]
func (h *VisitHandler) Create(c *gin.Context) {
	var req dto.CreateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid visit payload"))
		return
	}
	visit, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, visit)
}

// Update godoc
// @Summary Patch a visit
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body dto.UpdateVisitRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /visits/{id} [patch]
func (h *VisitHandler) Update(c *gin.Context) {
	var req dto.UpdateVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid visit patch"))
		return
	}
	visit, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Complete godoc
// @Summary Complete a visit with inspection findings
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body dto.CompleteVisitRequest true "Completion payload"
// @Success 200 {object} response.Envelope
// @Router /visits/{id}/complete [post]
func (h *VisitHandler) Complete(c *gin.Context) {
	var req dto.CompleteVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid completion payload"))
		return
	}
	visit, err := h.service.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Cancel godoc
// @Summary Cancel a visit
// @Tags Visits
// @Produce json
// @Param id path string true "Visit ID"
// @Success 200 {object} response.Envelope
// @Router /visits/{id}/cancel [post]
func (h *VisitHandler) Cancel(c *gin.Context) {
	visit, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Reschedule godoc
// @Summary Reschedule a visit
// @Tags Visits
// @Accept json
// @Produce json
// @Param id path string true "Visit ID"
// @Param payload body dto.RescheduleVisitRequest true "Reschedule payload"
// @Success 200 {object} response.Envelope
// @Router /visits/{id}/reschedule [post]
func (h *VisitHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	visit, err := h.service.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, visit, nil)
}

// Delete godoc
// @Summary Delete a visit
// @Description Visits without field data are removed; completed or in-progress visits are archived.
// @Tags Visits
// @Param id path string true "Visit ID"
// @Success 204
// @Router /visits/{id} [delete]
func (h *VisitHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
