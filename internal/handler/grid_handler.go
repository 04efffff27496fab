package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/service"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
	"github.com/noah-isme/fsm-visit-api/pkg/response"
)

type gridProjector interface {
	AnnualMatrix(ctx context.Context, query dto.AnnualMatrixQuery) (*dto.AnnualMatrixResponse, error)
	Compliance(ctx context.Context, year int, branchIDs []string) ([]dto.BranchCompliance, error)
}

// GridHandler exposes the annual planning grid projection.
type GridHandler struct {
	service gridProjector
}

// NewGridHandler constructs the handler.
func NewGridHandler(svc *service.GridService) *GridHandler {
	return &GridHandler{service: svc}
}

// AnnualMatrix godoc
// @Summary 52-week visit grid for a year
// @Tags Grid
// @Produce json
// @Param year query int true "Target year"
// @Param branchIds query string false "Comma-separated branch IDs"
// @Param companyId query string false "Company filter"
// @Param weekStart query string false "Week anchor: saturday or sunday"
// @Success 200 {object} response.Envelope
// @Router /grid/annual [get]
func (h *GridHandler) AnnualMatrix(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required"))
		return
	}
	query := dto.AnnualMatrixQuery{
		Year:               year,
		BranchIDs:          splitIDs(c.Query("branchIds")),
		CompanyID:          c.Query("companyId"),
		PreferredWeekStart: c.Query("weekStart"),
	}
	matrix, err := h.service.AnnualMatrix(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix, nil)
}

// Compliance godoc
// @Summary Required versus fulfilled visits per branch
// @Tags Grid
// @Produce json
// @Param year query int true "Target year"
// @Param branchIds query string false "Comma-separated branch IDs"
// @Success 200 {object} response.Envelope
// @Router /grid/compliance [get]
func (h *GridHandler) Compliance(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required"))
		return
	}
	summary, err := h.service.Compliance(c.Request.Context(), year, splitIDs(c.Query("branchIds")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
