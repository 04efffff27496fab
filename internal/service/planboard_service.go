package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/dates"
	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

// ToggleCell actions reported back to the board.
const (
	ToggleActionCreated = "created"
	ToggleActionDeleted = "deleted"
	ToggleActionCleared = "cleared"
)

type planboardVisitStore interface {
	FindByID(ctx context.Context, id string) (*models.Visit, error)
	ListByBranch(ctx context.Context, branchID string) ([]models.Visit, error)
	ListAll(ctx context.Context) ([]models.Visit, error)
	Create(ctx context.Context, visit *models.Visit) error
	Update(ctx context.Context, visit *models.Visit) error
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, visits []models.Visit) error
}

type planboardCoverage interface {
	ContractsCoveringBranch(ctx context.Context, branchID string) ([]models.Contract, error)
}

// PlanboardConfig carries the interactive capacity and week anchoring knobs.
type PlanboardConfig struct {
	MaxVisitsPerDay    int
	PreferredWeekStart string
}

// PlanboardService backs the interactive grid actions: cell toggles, drag
// moves, week fills and bulk deletes. Bulk work iterates in input order and
// awaits every write before reporting.
type PlanboardService struct {
	visits    planboardVisitStore
	coverage  planboardCoverage
	grid      gridInvalidator
	tx        plannerTxProvider
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PlanboardConfig
}

// NewPlanboardService wires the interactive mutator.
func NewPlanboardService(visits planboardVisitStore, coverage planboardCoverage, grid gridInvalidator, tx plannerTxProvider, validate *validator.Validate, logger *zap.Logger, cfg PlanboardConfig) *PlanboardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxVisitsPerDay <= 0 {
		cfg.MaxVisitsPerDay = 5
	}
	if cfg.PreferredWeekStart == "" {
		cfg.PreferredWeekStart = dto.WeekStartSaturday
	}
	return &PlanboardService{
		visits:    visits,
		coverage:  coverage,
		grid:      grid,
		tx:        tx,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// ToggleCell flips one (branch, week) cell. An empty cell gains a scheduled
// visit; a cell holding only plain planned visits is emptied by hard delete;
// anything carrying field data is only cleared with explicit confirmation.
func (s *PlanboardService) ToggleCell(ctx context.Context, req dto.ToggleCellRequest) (*dto.ToggleCellResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid toggle payload")
	}
	weekStart, weekEnd := weekBounds(req.Year, req.WeekNumber, s.cfg.PreferredWeekStart)

	branchVisits, err := s.visits.ListByBranch(ctx, req.BranchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load branch visits")
	}
	cell := visitsInWindow(branchVisits, weekStart, weekEnd)

	if len(cell) == 0 {
		visit, err := s.createCellVisit(ctx, req.BranchID, weekStart, weekEnd, nil)
		if err != nil {
			return nil, err
		}
		if err := s.visits.Create(ctx, visit); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create visit")
		}
		s.invalidate(ctx)
		return &dto.ToggleCellResponse{Action: ToggleActionCreated, Visit: visit, Status: models.CellStatusPlanned}, nil
	}

	plainPlanned := true
	for _, visit := range cell {
		if visit.Destructive() {
			plainPlanned = false
			break
		}
	}

	if plainPlanned {
		for _, visit := range cell {
			if err := s.visits.Delete(ctx, visit.ID); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete visit")
			}
		}
		s.invalidate(ctx)
		return &dto.ToggleCellResponse{Action: ToggleActionDeleted, Status: models.CellStatusNone}, nil
	}

	if !req.Confirm {
		return nil, appErrors.Clone(appErrors.ErrConfirmationRequired, "")
	}
	for _, visit := range cell {
		if visit.Status == models.VisitStatusScheduled || visit.Status == models.VisitStatusRescheduled {
			err = s.visits.Delete(ctx, visit.ID)
		} else {
			err = s.visits.Archive(ctx, visit.ID)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear cell")
		}
	}
	s.invalidate(ctx)
	return &dto.ToggleCellResponse{Action: ToggleActionCleared, Status: models.CellStatusNone}, nil
}

// MoveVisit relocates a visit to another day, re-validating the target day's
// capacity.
func (s *PlanboardService) MoveVisit(ctx context.Context, id string, req dto.MoveVisitRequest) (*models.Visit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	visit, err := s.visits.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visit")
	}
	if visit.Status == models.VisitStatusCompleted || visit.Status == models.VisitStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "closed visits cannot be moved")
	}
	target, err := dates.Parse(req.TargetDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnparseableDate.Code, appErrors.ErrUnparseableDate.Status, appErrors.ErrUnparseableDate.Message)
	}

	occupancy, err := s.dayOccupancy(ctx, target.Time, visit.ID)
	if err != nil {
		return nil, err
	}
	if occupancy >= s.cfg.MaxVisitsPerDay {
		return nil, appErrors.Clone(appErrors.ErrCapacityConflict, "")
	}

	visit.ScheduledDate = target
	if err := s.visits.Update(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move visit")
	}
	s.invalidate(ctx)
	return visit, nil
}

// PlanWeek places one scheduled visit in every empty cell of the week,
// committing all created visits in a single batched write.
func (s *PlanboardService) PlanWeek(ctx context.Context, req dto.PlanWeekRequest) (*dto.PlanWeekResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan week payload")
	}
	weekStart, weekEnd := weekBounds(req.Year, req.WeekNumber, s.cfg.PreferredWeekStart)

	resp := &dto.PlanWeekResponse{FailedBranches: []dto.FailedBranch{}}
	weekCounts, err := s.weekOccupancy(ctx, weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	var attempted []string
	var toCreate []models.Visit
	for _, branchID := range req.BranchIDs {
		branchVisits, err := s.visits.ListByBranch(ctx, branchID)
		if err != nil {
			resp.FailedBranches = append(resp.FailedBranches, dto.FailedBranch{BranchID: branchID, Reason: err.Error()})
			continue
		}
		if len(visitsInWindow(branchVisits, weekStart, weekEnd)) > 0 {
			continue
		}
		visit, err := s.createCellVisit(ctx, branchID, weekStart, weekEnd, weekCounts)
		if err != nil {
			resp.FailedBranches = append(resp.FailedBranches, dto.FailedBranch{BranchID: branchID, Reason: appErrors.FromError(err).Message})
			continue
		}
		weekCounts[dayKey(visit.ScheduledDate.Time)]++
		attempted = append(attempted, branchID)
		toCreate = append(toCreate, *visit)
	}

	if len(toCreate) > 0 {
		if err := s.commitWeek(ctx, toCreate); err != nil {
			for _, branchID := range attempted {
				resp.FailedBranches = append(resp.FailedBranches, dto.FailedBranch{BranchID: branchID, Reason: "batched write failed"})
			}
			s.logger.Sugar().Errorw("week planning commit failed", "error", err)
			return resp, nil
		}
		resp.SuccessCount = len(toCreate)
		s.invalidate(ctx)
	}
	return resp, nil
}

// BulkDelete removes the selection. Completed, in-progress or emergency
// visits block the run unless force is set.
func (s *PlanboardService) BulkDelete(ctx context.Context, req dto.BulkDeleteRequest) (*dto.BulkDeleteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk delete payload")
	}

	resp := &dto.BulkDeleteResponse{}
	loaded := make([]*models.Visit, 0, len(req.VisitIDs))
	for _, id := range req.VisitIDs {
		visit, err := s.visits.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				resp.Errors = append(resp.Errors, fmt.Sprintf("visit %s not found", id))
				continue
			}
			resp.Errors = append(resp.Errors, fmt.Sprintf("visit %s: %v", id, err))
			continue
		}
		if visit.Destructive() {
			resp.RiskyIDs = append(resp.RiskyIDs, visit.ID)
		}
		loaded = append(loaded, visit)
	}

	if len(resp.RiskyIDs) > 0 && !req.Force {
		return nil, appErrors.Clone(appErrors.ErrConfirmationRequired,
			fmt.Sprintf("deleting these visits loses completed or emergency data: %s", strings.Join(resp.RiskyIDs, ", ")))
	}

	for _, visit := range loaded {
		var err error
		if visit.Status == models.VisitStatusScheduled || visit.Status == models.VisitStatusRescheduled {
			err = s.visits.Delete(ctx, visit.ID)
		} else {
			err = s.visits.Archive(ctx, visit.ID)
		}
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("visit %s: %v", visit.ID, err))
			continue
		}
		resp.DeletedCount++
	}
	if resp.DeletedCount > 0 {
		s.invalidate(ctx)
	}
	return resp, nil
}

// createCellVisit builds one scheduled visit for the branch inside the week,
// choosing the first day that is covered by a contract and under capacity.
// weekCounts may pre-seed occupancy for batched runs; nil falls back to a
// fresh store read.
func (s *PlanboardService) createCellVisit(ctx context.Context, branchID string, weekStart, weekEnd time.Time, weekCounts map[string]int) (*models.Visit, error) {
	contracts, err := s.coverage.ContractsCoveringBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, appErrors.Clone(appErrors.ErrBranchNotCovered, "")
	}
	if weekCounts == nil {
		weekCounts, err = s.weekOccupancy(ctx, weekStart, weekEnd)
		if err != nil {
			return nil, err
		}
	}

	for day := weekStart; !day.After(weekEnd); day = day.AddDate(0, 0, 1) {
		if weekCounts[dayKey(day)] >= s.cfg.MaxVisitsPerDay {
			continue
		}
		contract, batch := pickCoverage(contracts, branchID, day)
		if contract == nil || batch == nil {
			return nil, appErrors.Clone(appErrors.ErrBranchNotCovered, "")
		}
		if !contract.ContainsDate(day) {
			continue
		}
		return &models.Visit{
			BranchID:      branchID,
			ContractID:    contract.ID,
			CompanyID:     contract.CompanyID,
			Type:          models.VisitTypeRegular,
			Status:        models.VisitStatusScheduled,
			ScheduledDate: dates.New(day),
			VisitServices: batch.Services(),
			CreatedBy:     "planboard",
		}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrCapacityConflict, "no day in the week is inside a contract window and under capacity")
}

func (s *PlanboardService) commitWeek(ctx context.Context, visits []models.Visit) error {
	if s.tx == nil {
		return fmt.Errorf("transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin week commit: %w", err)
	}
	if err := s.visits.BulkCreateWithTx(ctx, tx, visits); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *PlanboardService) dayOccupancy(ctx context.Context, day time.Time, excludeID string) (int, error) {
	all, err := s.visits.ListAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visits")
	}
	count := 0
	for _, visit := range all {
		if visit.ID == excludeID || !visit.Active() {
			continue
		}
		if visit.ScheduledDate.InRange(day, day) {
			count++
		}
	}
	return count, nil
}

func (s *PlanboardService) weekOccupancy(ctx context.Context, weekStart, weekEnd time.Time) (map[string]int, error) {
	all, err := s.visits.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visits")
	}
	counts := make(map[string]int)
	for _, visit := range all {
		if !visit.Active() || !visit.ScheduledDate.InRange(weekStart, weekEnd) {
			continue
		}
		counts[dayKey(visit.ScheduledDate.Time)]++
	}
	return counts, nil
}

func (s *PlanboardService) invalidate(ctx context.Context) {
	if s.grid == nil {
		return
	}
	if err := s.grid.Invalidate(ctx); err != nil {
		s.logger.Sugar().Warnw("grid invalidation after planboard mutation failed", "error", err)
	}
}

func visitsInWindow(visits []models.Visit, start, end time.Time) []models.Visit {
	var matched []models.Visit
	for _, visit := range visits {
		if visit.Active() && visit.ScheduledDate.InRange(start, end) {
			matched = append(matched, visit)
		}
	}
	return matched
}
