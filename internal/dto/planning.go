package dto

import (
	"time"

	"github.com/noah-isme/fsm-visit-api/internal/models"
)

// Conflict resolution policies accepted by the planner.
const (
	ConflictResolutionReschedule = "reschedule"
	ConflictResolutionSkip       = "skip"
	ConflictResolutionError      = "error"
)

// Week start anchors accepted by the planner and projector.
const (
	WeekStartSaturday = "saturday"
	WeekStartSunday   = "sunday"
)

// PlanningOptions is the closed, validated configuration surface for a
// planning run.
type PlanningOptions struct {
	MaxVisitsPerDay       int    `json:"maxVisitsPerDay" validate:"required,min=1,max=10"`
	MinDaysBetweenVisits  int    `json:"minDaysBetweenVisits" validate:"required,min=1,max=7"`
	PreferredWeekStart    string `json:"preferredWeekStart" validate:"required,oneof=saturday sunday"`
	IncludeExistingVisits bool   `json:"includeExistingVisits"`
	ConflictResolution    string `json:"conflictResolution" validate:"required,oneof=reschedule skip error"`
	BatchSize             int    `json:"batchSize" validate:"omitempty,min=1,max=500"`
}

// PlanVisitsRequest instructs the planner to build visits for the target branches.
type PlanVisitsRequest struct {
	Year      int             `json:"year" validate:"required,min=2000,max=2100"`
	BranchIDs []string        `json:"branchIds" validate:"required,min=1,dive,required"`
	Options   PlanningOptions `json:"options" validate:"required"`
	DryRun    bool            `json:"dryRun"`
}

// Conflict types recorded by the planner.
const (
	ConflictTypeRescheduled = "RESCHEDULED"
	ConflictTypeSkipped     = "SKIPPED"
	ConflictTypeFatal       = "FATAL"
)

// PlanningConflict records a capacity or spacing violation and how it was resolved.
type PlanningConflict struct {
	Type          string `json:"type"`
	BranchID      string `json:"branchId"`
	ContractID    string `json:"contractId,omitempty"`
	RequestedDate string `json:"requestedDate"`
	ResolvedDate  string `json:"resolvedDate,omitempty"`
	Reason        string `json:"reason"`
}

// PlanningSummary aggregates run counters.
type PlanningSummary struct {
	TotalPlanned   int           `json:"totalPlanned"`
	TotalConflicts int           `json:"totalConflicts"`
	TotalSkipped   int           `json:"totalSkipped"`
	PlanningTime   time.Duration `json:"planningTime"`
}

// PlanningResult is the full outcome of a planning run. Errors are collected
// here and never thrown past the planner boundary.
type PlanningResult struct {
	Success        bool               `json:"success"`
	PlannedVisits  []models.Visit     `json:"plannedVisits"`
	Conflicts      []PlanningConflict `json:"conflicts"`
	Summary        PlanningSummary    `json:"summary"`
	Errors         []string           `json:"errors"`
	CommittedCount int                `json:"committedCount"`
}

// PlanWeekRequest plans one visit for every empty branch cell in the week.
type PlanWeekRequest struct {
	Year       int      `json:"year" validate:"required,min=2000,max=2100"`
	WeekNumber int      `json:"weekNumber" validate:"required,min=1,max=52"`
	BranchIDs  []string `json:"branchIds" validate:"required,min=1,dive,required"`
}

// FailedBranch reports a per-branch bulk failure without aborting the run.
type FailedBranch struct {
	BranchID string `json:"branchId"`
	Reason   string `json:"reason"`
}

// PlanWeekResponse summarises a bulk week-planning run.
type PlanWeekResponse struct {
	SuccessCount   int            `json:"successCount"`
	FailedBranches []FailedBranch `json:"failedBranches"`
}
