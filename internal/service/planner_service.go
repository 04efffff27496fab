package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/dates"
	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

type plannerCoverage interface {
	RequiredVisits(ctx context.Context, branchID string, year int) (models.VisitQuota, error)
	ContractsCoveringBranch(ctx context.Context, branchID string) ([]models.Contract, error)
}

type plannerVisitStore interface {
	ListAll(ctx context.Context) ([]models.Visit, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, visits []models.Visit) error
}

type plannerBranchReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Branch, error)
}

type plannerTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// PlannerConfig carries placement defaults and the write backpressure knobs.
type PlannerConfig struct {
	BatchSize            int
	BatchDelay           time.Duration
	RescheduleWindowDays int
}

// PlannerService distributes a year of required visits over the calendar,
// honouring day capacity and per-branch spacing. Placement problems become
// conflict records or accumulated errors; nothing throws past Plan.
type PlannerService struct {
	coverage  plannerCoverage
	visits    plannerVisitStore
	branches  plannerBranchReader
	grid      gridInvalidator
	tx        plannerTxProvider
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PlannerConfig
}

// NewPlannerService wires planner dependencies.
func NewPlannerService(
	coverage plannerCoverage,
	visits plannerVisitStore,
	branches plannerBranchReader,
	grid gridInvalidator,
	tx plannerTxProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg PlannerConfig,
) *PlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RescheduleWindowDays <= 0 {
		cfg.RescheduleWindowDays = 14
	}
	return &PlannerService{
		coverage:  coverage,
		visits:    visits,
		branches:  branches,
		grid:      grid,
		tx:        tx,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Plan builds and, unless DryRun is set, commits the visit allocation for the
// requested branches. Branches are processed in input order; a fatal branch
// contributes zero visits without aborting the run.
func (s *PlannerService) Plan(ctx context.Context, req dto.PlanVisitsRequest) (*dto.PlanningResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid planning payload")
	}
	opts := req.Options
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.cfg.BatchSize
	}

	started := time.Now()
	result := &dto.PlanningResult{
		PlannedVisits: []models.Visit{},
		Conflicts:     []dto.PlanningConflict{},
		Errors:        []string{},
	}

	known, err := s.knownBranches(ctx, req.BranchIDs)
	if err != nil {
		return nil, err
	}

	existing, err := s.visits.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing visits")
	}
	state := newPlannerState(opts, s.cfg.RescheduleWindowDays)
	state.seedExisting(existing)

	for _, branchID := range req.BranchIDs {
		if !known[branchID] {
			result.Conflicts = append(result.Conflicts, dto.PlanningConflict{
				Type:     dto.ConflictTypeSkipped,
				BranchID: branchID,
				Reason:   "branch not found or archived",
			})
			result.Summary.TotalSkipped++
			continue
		}
		s.planBranch(ctx, state, branchID, req.Year, result)
	}

	if !req.DryRun && len(result.PlannedVisits) > 0 {
		s.commit(ctx, result, opts.BatchSize)
		if result.CommittedCount > 0 && s.grid != nil {
			if err := s.grid.Invalidate(ctx); err != nil {
				s.logger.Sugar().Warnw("grid invalidation after planning failed", "error", err)
			}
		}
	}

	result.Summary.TotalPlanned = len(result.PlannedVisits)
	result.Summary.TotalConflicts = len(result.Conflicts)
	result.Summary.PlanningTime = time.Since(started)
	result.Success = len(result.Errors) == 0

	s.metrics.ObservePlanningRun(result.Summary.PlanningTime, len(result.PlannedVisits))
	for _, conflict := range result.Conflicts {
		s.metrics.IncPlanningConflict(conflict.Type)
	}
	s.logger.Sugar().Infow("planning run finished",
		"year", req.Year,
		"branches", len(req.BranchIDs),
		"planned", result.Summary.TotalPlanned,
		"conflicts", result.Summary.TotalConflicts,
		"skipped", result.Summary.TotalSkipped,
		"committed", result.CommittedCount,
		"dry_run", req.DryRun,
	)
	return result, nil
}

func (s *PlannerService) knownBranches(ctx context.Context, ids []string) (map[string]bool, error) {
	branches, err := s.branches.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load branches")
	}
	known := make(map[string]bool, len(branches))
	for _, branch := range branches {
		known[branch.ID] = true
	}
	return known, nil
}

func (s *PlannerService) planBranch(ctx context.Context, state *plannerState, branchID string, year int, result *dto.PlanningResult) {
	quota, err := s.coverage.RequiredVisits(ctx, branchID, year)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("branch %s: %v", branchID, err))
		return
	}
	if quota.Regular == 0 && quota.Emergency == 0 {
		return
	}
	contracts, err := s.coverage.ContractsCoveringBranch(ctx, branchID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("branch %s: %v", branchID, err))
		return
	}

	window, ok := planningWindow(contracts, year)
	if !ok {
		result.Conflicts = append(result.Conflicts, dto.PlanningConflict{
			Type:     dto.ConflictTypeSkipped,
			BranchID: branchID,
			Reason:   "planning window is empty for this year",
		})
		result.Summary.TotalSkipped++
		return
	}

	toPlace := quota.Regular
	if state.opts.IncludeExistingVisits {
		toPlace -= state.existingRegularInWindow(branchID, window)
		if toPlace < 0 {
			toPlace = 0
		}
	}

	var branchVisits []models.Visit
	fatal := false

	placeOne := func(requested time.Time, visitType models.VisitType) {
		if fatal {
			return
		}
		resolved, conflict, placed := s.resolvePlacement(state, branchID, requested, window)
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			if conflict.Type == dto.ConflictTypeSkipped {
				result.Summary.TotalSkipped++
			}
			if conflict.Type == dto.ConflictTypeFatal {
				fatal = true
				return
			}
		}
		if !placed {
			return
		}
		contract, batch := pickCoverage(contracts, branchID, resolved)
		if contract == nil || batch == nil {
			result.Conflicts = append(result.Conflicts, dto.PlanningConflict{
				Type:          dto.ConflictTypeSkipped,
				BranchID:      branchID,
				RequestedDate: dates.New(requested).String(),
				Reason:        "no covering batch for the resolved date",
			})
			result.Summary.TotalSkipped++
			state.release(branchID, resolved)
			return
		}
		branchVisits = append(branchVisits, models.Visit{
			BranchID:      branchID,
			ContractID:    contract.ID,
			CompanyID:     contract.CompanyID,
			Type:          visitType,
			Status:        models.VisitStatusScheduled,
			ScheduledDate: dates.New(resolved),
			VisitServices: batch.Services(),
			CreatedBy:     "planner",
		})
	}

	if toPlace > 0 {
		interval := window.days() / toPlace
		if interval < 1 {
			interval = 1
		}
		for i := 0; i < toPlace; i++ {
			requested := window.start.AddDate(0, 0, i*interval)
			requested = snapToWeekStart(requested, state.opts.PreferredWeekStart, window)
			placeOne(requested, models.VisitTypeRegular)
		}
	}

	// Emergency allowance spreads over equal segments of the window, placed
	// at segment midpoints. Deterministic for a given window and quota.
	for j := 0; j < quota.Emergency && !fatal; j++ {
		offset := (2*j + 1) * window.days() / (2 * quota.Emergency)
		requested := window.start.AddDate(0, 0, offset)
		placeOne(requested, models.VisitTypeEmergency)
	}

	if fatal {
		for _, visit := range branchVisits {
			state.release(branchID, visit.ScheduledDate.Time)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("branch %s: placement aborted by error policy", branchID))
		return
	}
	result.PlannedVisits = append(result.PlannedVisits, branchVisits...)
}

// resolvePlacement applies the conflict policy when the requested day is
// full or too close to another visit of the branch.
func (s *PlannerService) resolvePlacement(state *plannerState, branchID string, requested time.Time, window planWindow) (time.Time, *dto.PlanningConflict, bool) {
	if state.fits(branchID, requested) {
		state.reserve(branchID, requested)
		return requested, nil, true
	}

	requestedCode := dates.New(requested).String()
	switch state.opts.ConflictResolution {
	case dto.ConflictResolutionReschedule:
		if resolved, ok := state.probe(branchID, requested, window); ok {
			state.reserve(branchID, resolved)
			return resolved, &dto.PlanningConflict{
				Type:          dto.ConflictTypeRescheduled,
				BranchID:      branchID,
				RequestedDate: requestedCode,
				ResolvedDate:  dates.New(resolved).String(),
				Reason:        "requested day at capacity or too close to another visit",
			}, true
		}
		return time.Time{}, &dto.PlanningConflict{
			Type:          dto.ConflictTypeSkipped,
			BranchID:      branchID,
			RequestedDate: requestedCode,
			Reason:        fmt.Sprintf("no free day within %d days of the requested date", state.rescheduleWindow),
		}, false
	case dto.ConflictResolutionSkip:
		return time.Time{}, &dto.PlanningConflict{
			Type:          dto.ConflictTypeSkipped,
			BranchID:      branchID,
			RequestedDate: requestedCode,
			Reason:        "requested day at capacity or too close to another visit",
		}, false
	default:
		return time.Time{}, &dto.PlanningConflict{
			Type:          dto.ConflictTypeFatal,
			BranchID:      branchID,
			RequestedDate: requestedCode,
			Reason:        "capacity conflict under error policy",
		}, false
	}
}

// commit persists planned visits in fixed-size chunks, one transaction per
// chunk, pausing between chunks so bulk runs do not monopolise the pool.
// Earlier chunks survive a later failure; the partial count is reported.
func (s *PlannerService) commit(ctx context.Context, result *dto.PlanningResult, batchSize int) {
	if s.tx == nil {
		result.Errors = append(result.Errors, "transaction provider missing")
		return
	}
	total := len(result.PlannedVisits)
	for offset := 0; offset < total; offset += batchSize {
		end := offset + batchSize
		if end > total {
			end = total
		}
		chunk := result.PlannedVisits[offset:end]

		tx, err := s.tx.BeginTxx(ctx, nil)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("begin commit batch: %v", err))
			return
		}
		if err := s.visits.BulkCreateWithTx(ctx, tx, chunk); err != nil {
			_ = tx.Rollback()
			result.Errors = append(result.Errors, fmt.Sprintf("commit batch at offset %d: %v", offset, err))
			return
		}
		if err := tx.Commit(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("commit batch at offset %d: %v", offset, err))
			return
		}
		result.CommittedCount += len(chunk)

		if end < total && s.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				result.Errors = append(result.Errors, fmt.Sprintf("commit interrupted: %v", ctx.Err()))
				return
			case <-time.After(s.cfg.BatchDelay):
			}
		}
	}
}

// --- Planner state ---

type planWindow struct {
	start time.Time
	end   time.Time
}

func (w planWindow) days() int {
	return int(w.end.Sub(w.start).Hours()/24) + 1
}

func (w planWindow) contains(d time.Time) bool {
	return !d.Before(w.start) && !d.After(w.end)
}

// planningWindow intersects the union of the covering contract periods with
// the target year and the trailing twelve months.
func planningWindow(contracts []models.Contract, year int) (planWindow, bool) {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	var earliest, latest time.Time
	for _, contract := range contracts {
		if !contract.OverlapsYear(year) {
			continue
		}
		if earliest.IsZero() || contract.StartDate.Before(earliest) {
			earliest = contract.StartDate
		}
		if latest.IsZero() || contract.EndDate.After(latest) {
			latest = contract.EndDate
		}
	}
	if earliest.IsZero() {
		return planWindow{}, false
	}

	start := truncateDay(earliest)
	if start.Before(yearStart) {
		start = yearStart
	}
	horizon := truncateDay(time.Now().UTC().AddDate(-1, 0, 0))
	if start.Before(horizon) {
		start = horizon
	}
	end := truncateDay(latest)
	if end.After(yearEnd) {
		end = yearEnd
	}
	if start.After(end) {
		return planWindow{}, false
	}
	return planWindow{start: start, end: end}, true
}

type plannerState struct {
	opts             dto.PlanningOptions
	rescheduleWindow int
	dayCounts        map[string]int
	branchDates      map[string][]time.Time
	existingRegular  map[string][]time.Time
}

func newPlannerState(opts dto.PlanningOptions, rescheduleWindow int) *plannerState {
	return &plannerState{
		opts:             opts,
		rescheduleWindow: rescheduleWindow,
		dayCounts:        make(map[string]int),
		branchDates:      make(map[string][]time.Time),
		existingRegular:  make(map[string][]time.Time),
	}
}

// seedExisting loads persisted visits into the capacity tracker. Visits with
// unparseable dates cannot occupy a day and are ignored.
func (st *plannerState) seedExisting(visits []models.Visit) {
	for _, visit := range visits {
		if !visit.Active() {
			continue
		}
		day := visit.ScheduledDate.Time
		st.dayCounts[dayKey(day)]++
		st.branchDates[visit.BranchID] = append(st.branchDates[visit.BranchID], day)
		if visit.Type == models.VisitTypeRegular {
			st.existingRegular[visit.BranchID] = append(st.existingRegular[visit.BranchID], day)
		}
	}
}

func (st *plannerState) existingRegularInWindow(branchID string, window planWindow) int {
	count := 0
	for _, day := range st.existingRegular[branchID] {
		if window.contains(day) {
			count++
		}
	}
	return count
}

func (st *plannerState) fits(branchID string, day time.Time) bool {
	if st.dayCounts[dayKey(day)] >= st.opts.MaxVisitsPerDay {
		return false
	}
	for _, other := range st.branchDates[branchID] {
		if absDays(day, other) < st.opts.MinDaysBetweenVisits {
			return false
		}
	}
	return true
}

func (st *plannerState) reserve(branchID string, day time.Time) {
	st.dayCounts[dayKey(day)]++
	st.branchDates[branchID] = append(st.branchDates[branchID], day)
}

func (st *plannerState) release(branchID string, day time.Time) {
	key := dayKey(day)
	if st.dayCounts[key] > 0 {
		st.dayCounts[key]--
	}
	days := st.branchDates[branchID]
	for i, other := range days {
		if other.Equal(day) {
			st.branchDates[branchID] = append(days[:i], days[i+1:]...)
			break
		}
	}
}

// probe searches outward from the requested day, alternating +1, -1, +2, -2
// up to the reschedule window, staying inside the planning window.
func (st *plannerState) probe(branchID string, requested time.Time, window planWindow) (time.Time, bool) {
	for offset := 1; offset <= st.rescheduleWindow; offset++ {
		forward := requested.AddDate(0, 0, offset)
		if window.contains(forward) && st.fits(branchID, forward) {
			return forward, true
		}
		backward := requested.AddDate(0, 0, -offset)
		if window.contains(backward) && st.fits(branchID, backward) {
			return backward, true
		}
	}
	return time.Time{}, false
}

func snapToWeekStart(day time.Time, weekStart string, window planWindow) time.Time {
	target := time.Saturday
	if weekStart == dto.WeekStartSunday {
		target = time.Sunday
	}
	snapped := day
	for snapped.Weekday() != target {
		snapped = snapped.AddDate(0, 0, 1)
	}
	if !window.contains(snapped) {
		return day
	}
	return snapped
}

func pickCoverage(contracts []models.Contract, branchID string, day time.Time) (*models.Contract, *models.ServiceBatch) {
	var fallbackContract *models.Contract
	var fallbackBatch *models.ServiceBatch
	for i := range contracts {
		for j := range contracts[i].Batches {
			if !contracts[i].Batches[j].CoversBranch(branchID) {
				continue
			}
			if contracts[i].ContainsDate(day) {
				return &contracts[i], &contracts[i].Batches[j]
			}
			if fallbackContract == nil {
				fallbackContract = &contracts[i]
				fallbackBatch = &contracts[i].Batches[j]
			}
		}
	}
	return fallbackContract, fallbackBatch
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func absDays(a, b time.Time) int {
	diff := int(truncateDay(a).Sub(truncateDay(b)).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
