package dto

import "github.com/noah-isme/fsm-visit-api/internal/models"

// CreateVisitRequest creates a single visit record.
type CreateVisitRequest struct {
	BranchID      string           `json:"branchId" validate:"required"`
	ContractID    string           `json:"contractId" validate:"required"`
	Type          models.VisitType `json:"type" validate:"required,oneof=regular emergency followup"`
	ScheduledDate string           `json:"scheduledDate" validate:"required"`
	CreatedBy     string           `json:"createdBy"`
}

// UpdateVisitRequest patches mutable visit fields.
type UpdateVisitRequest struct {
	ScheduledDate *string             `json:"scheduledDate,omitempty"`
	Status        *models.VisitStatus `json:"status,omitempty" validate:"omitempty,oneof=scheduled in_progress completed cancelled rescheduled"`
}

// CompleteVisitRequest closes out a visit with inspection findings.
type CompleteVisitRequest struct {
	CompletedDate   string               `json:"completedDate" validate:"required"`
	OverallStatus   models.OverallResult `json:"overallStatus" validate:"required,oneof=passed failed partial"`
	Issues          []string             `json:"issues"`
	Recommendations []string             `json:"recommendations"`
	NextVisitDate   string               `json:"nextVisitDate"`
}

// RescheduleVisitRequest moves a visit to a new date.
type RescheduleVisitRequest struct {
	ScheduledDate string `json:"scheduledDate" validate:"required"`
}

// ToggleCellRequest is the single-cell click action on the planning grid.
type ToggleCellRequest struct {
	BranchID   string `json:"branchId" validate:"required"`
	Year       int    `json:"year" validate:"required,min=2000,max=2100"`
	WeekNumber int    `json:"weekNumber" validate:"required,min=1,max=52"`
	Confirm    bool   `json:"confirm"`
}

// ToggleCellResponse reports the cell transition that happened.
type ToggleCellResponse struct {
	Action string            `json:"action"`
	Visit  *models.Visit     `json:"visit,omitempty"`
	Status models.CellStatus `json:"status"`
}

// MoveVisitRequest is the drag-style move of a visit to another day.
type MoveVisitRequest struct {
	TargetDate string `json:"targetDate" validate:"required"`
}

// BulkDeleteRequest removes a selection of visits.
type BulkDeleteRequest struct {
	VisitIDs []string `json:"visitIds" validate:"required,min=1,dive,required"`
	Force    bool     `json:"force"`
}

// BulkDeleteResponse summarises a bulk delete run.
type BulkDeleteResponse struct {
	DeletedCount int      `json:"deletedCount"`
	RiskyIDs     []string `json:"riskyIds,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}
