package dto

import (
	"time"

	"github.com/noah-isme/fsm-visit-api/internal/models"
)

// ExportRequest queues an asynchronous grid export.
type ExportRequest struct {
	Type      models.ExportType   `json:"type" validate:"required,oneof=annual_grid compliance"`
	Year      int                 `json:"year" validate:"required,min=2000,max=2100"`
	CompanyID string              `json:"companyId"`
	BranchIDs []string            `json:"branchIds"`
	Format    models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse acknowledges a queued export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports job progress and the signed download URL once finished.
type ExportStatusResponse struct {
	ID           string              `json:"id"`
	Status       models.ExportStatus `json:"status"`
	Progress     int                 `json:"progress"`
	ResultURL    *string             `json:"resultUrl,omitempty"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
	ErrorMessage *string             `json:"errorMessage,omitempty"`
}
