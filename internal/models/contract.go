package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Contract binds a company to a service obligation over a fixed period.
// Contracts and their batches are read-only inputs for the planning engine;
// they are maintained by the surrounding CRUD subsystem.
type Contract struct {
	ID         string    `db:"id" json:"id"`
	CompanyID  string    `db:"company_id" json:"company_id"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`
	IsArchived bool      `db:"is_archived" json:"is_archived"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Batches []ServiceBatch `db:"-" json:"service_batches"`
}

// OverlapsYear reports whether the contract period touches the given calendar year.
func (c Contract) OverlapsYear(year int) bool {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
	return !c.StartDate.After(yearEnd) && !c.EndDate.Before(yearStart)
}

// ContainsDate reports whether the date falls inside the contract period.
func (c Contract) ContainsDate(d time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Date(c.StartDate.Year(), c.StartDate.Month(), c.StartDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(c.EndDate.Year(), c.EndDate.Month(), c.EndDate.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && !day.After(end)
}

// ServiceBatch groups branches under a shared annual visit obligation and a
// set of covered safety services.
type ServiceBatch struct {
	ID                     string         `db:"id" json:"id"`
	ContractID             string         `db:"contract_id" json:"contract_id"`
	Position               int            `db:"position" json:"position"`
	BranchIDs              types.JSONText `db:"branch_ids" json:"branch_ids"`
	FireExtinguisher       bool           `db:"fire_extinguisher" json:"fire_extinguisher"`
	FireAlarm              bool           `db:"fire_alarm" json:"fire_alarm"`
	FireSuppression        bool           `db:"fire_suppression" json:"fire_suppression"`
	GasSystem              bool           `db:"gas_system" json:"gas_system"`
	FoamSystem             bool           `db:"foam_system" json:"foam_system"`
	RegularVisitsPerYear   int            `db:"regular_visits_per_year" json:"regular_visits_per_year"`
	EmergencyVisitsPerYear int            `db:"emergency_visits_per_year" json:"emergency_visits_per_year"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
}

// BranchList decodes the covered branch ids. Malformed payloads yield an empty list.
func (b ServiceBatch) BranchList() []string {
	var ids []string
	_ = json.Unmarshal(b.BranchIDs, &ids)
	return ids
}

// CoversBranch reports whether the batch includes the branch.
func (b ServiceBatch) CoversBranch(branchID string) bool {
	for _, id := range b.BranchList() {
		if id == branchID {
			return true
		}
	}
	return false
}

// Services resolves the batch's boolean service flags into the shape copied
// onto visits at creation time.
func (b ServiceBatch) Services() VisitServices {
	return VisitServices{
		FireExtinguisher: b.FireExtinguisher,
		FireAlarm:        b.FireAlarm,
		FireSuppression:  b.FireSuppression,
		GasSystem:        b.GasSystem,
		FoamSystem:       b.FoamSystem,
	}
}

// VisitQuota aggregates the annual visit requirement for a branch across
// every batch that includes it.
type VisitQuota struct {
	Regular   int `json:"regular"`
	Emergency int `json:"emergency"`
}
