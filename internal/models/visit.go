package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/fsm-visit-api/internal/dates"
)

// VisitType distinguishes contractual, reactive and follow-up visits.
type VisitType string

const (
	VisitTypeRegular   VisitType = "regular"
	VisitTypeEmergency VisitType = "emergency"
	VisitTypeFollowup  VisitType = "followup"
)

// VisitStatus tracks the lifecycle of a visit record.
type VisitStatus string

const (
	VisitStatusScheduled   VisitStatus = "scheduled"
	VisitStatusInProgress  VisitStatus = "in_progress"
	VisitStatusCompleted   VisitStatus = "completed"
	VisitStatusCancelled   VisitStatus = "cancelled"
	VisitStatusRescheduled VisitStatus = "rescheduled"
)

// OverallResult summarises the outcome of a completed visit.
type OverallResult string

const (
	OverallResultPassed  OverallResult = "passed"
	OverallResultFailed  OverallResult = "failed"
	OverallResultPartial OverallResult = "partial"
)

// VisitServices records which safety services the visit covers, copied from
// the originating service batch at creation time.
type VisitServices struct {
	FireExtinguisher bool `db:"fire_extinguisher" json:"fire_extinguisher"`
	FireAlarm        bool `db:"fire_alarm" json:"fire_alarm"`
	FireSuppression  bool `db:"fire_suppression" json:"fire_suppression"`
	GasSystem        bool `db:"gas_system" json:"gas_system"`
	FoamSystem       bool `db:"foam_system" json:"foam_system"`
}

// VisitResults captures inspection findings for a completed visit.
type VisitResults struct {
	OverallStatus   OverallResult      `json:"overall_status"`
	Issues          []string           `json:"issues,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty"`
	NextVisitDate   dates.ScheduleDate `json:"next_visit_date,omitempty"`
}

// Visit is the only mutable persisted entity of the planning engine.
type Visit struct {
	ID            string             `db:"id" json:"id"`
	BranchID      string             `db:"branch_id" json:"branch_id"`
	ContractID    string             `db:"contract_id" json:"contract_id"`
	CompanyID     string             `db:"company_id" json:"company_id"`
	Type          VisitType          `db:"type" json:"type"`
	Status        VisitStatus        `db:"status" json:"status"`
	ScheduledDate dates.ScheduleDate `db:"scheduled_date" json:"scheduled_date"`
	CompletedDate dates.ScheduleDate `db:"completed_date" json:"completed_date,omitempty"`
	Results       types.JSONText     `db:"results" json:"results,omitempty"`
	VisitServices
	IsArchived bool      `db:"is_archived" json:"is_archived"`
	CreatedBy  string    `db:"created_by" json:"created_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// CountsTowardCompliance reports whether the visit falls inside the contract
// window; visits outside the window are tolerated but excluded from
// completion-ratio calculations.
func (v Visit) CountsTowardCompliance(contract Contract) bool {
	return v.ScheduledDate.Valid && contract.ContainsDate(v.ScheduledDate.Time)
}

// Active reports whether the visit participates in grid projection.
func (v Visit) Active() bool {
	return !v.IsArchived && v.ScheduledDate.Valid
}

// Destructive reports whether deleting the visit loses real field data and
// therefore requires explicit confirmation.
func (v Visit) Destructive() bool {
	return v.Status == VisitStatusCompleted ||
		v.Status == VisitStatusInProgress ||
		v.Type == VisitTypeEmergency
}

// VisitFilter describes query params for listing visits.
type VisitFilter struct {
	BranchID   string
	ContractID string
	CompanyID  string
	Type       VisitType
	Status     VisitStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
