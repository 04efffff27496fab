package dto

import (
	"time"

	"github.com/noah-isme/fsm-visit-api/internal/models"
)

// BranchWeekCell is one derived (branch, week) intersection of the planning grid.
type BranchWeekCell struct {
	BranchID string            `json:"branchId"`
	Visits   []models.Visit    `json:"visits"`
	Status   models.CellStatus `json:"status"`
}

// WeekData is one projected week across the requested branches.
type WeekData struct {
	WeekNumber int              `json:"weekNumber"`
	WeekStart  time.Time        `json:"weekStart"`
	WeekEnd    time.Time        `json:"weekEnd"`
	Branches   []BranchWeekCell `json:"branches"`
}

// AnnualMatrixQuery selects the year slice of the grid.
type AnnualMatrixQuery struct {
	Year               int      `form:"year" json:"year" validate:"required,min=2000,max=2100"`
	BranchIDs          []string `form:"branchIds" json:"branchIds"`
	CompanyID          string   `form:"companyId" json:"companyId"`
	PreferredWeekStart string   `form:"weekStart" json:"weekStart" validate:"omitempty,oneof=saturday sunday"`
}

// AnnualMatrixResponse is the 52-week projection consumed by rendering layers.
type AnnualMatrixResponse struct {
	Year        int        `json:"year"`
	Weeks       []WeekData `json:"weeks"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// BranchCompliance reports required versus fulfilled visits for one branch/year.
type BranchCompliance struct {
	BranchID        string  `json:"branchId"`
	Year            int     `json:"year"`
	RequiredRegular int     `json:"requiredRegular"`
	Planned         int     `json:"planned"`
	Completed       int     `json:"completed"`
	CompletionRate  float64 `json:"completionRate"`
}
