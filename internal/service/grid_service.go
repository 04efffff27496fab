package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

const weeksPerYear = 52

type gridVisitSource interface {
	ListByBranches(ctx context.Context, branchIDs []string) ([]models.Visit, error)
}

type gridBranchSource interface {
	ListActive(ctx context.Context, companyID string) ([]models.Branch, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Branch, error)
}

type gridCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type complianceSource interface {
	RequiredVisits(ctx context.Context, branchID string, year int) (models.VisitQuota, error)
	ContractsCoveringBranch(ctx context.Context, branchID string) ([]models.Contract, error)
}

// GridConfig tunes projection behaviour.
type GridConfig struct {
	CacheTTL         time.Duration
	DefaultWeekStart string
}

// GridService projects the visit store onto the 52-week planning grid. Cell
// statuses are derived on every projection, never persisted.
type GridService struct {
	visits   gridVisitSource
	branches gridBranchSource
	cache    gridCache
	coverage complianceSource
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      GridConfig
}

// NewGridService wires the projector.
func NewGridService(visits gridVisitSource, branches gridBranchSource, cache gridCache, coverage complianceSource, metrics *MetricsService, logger *zap.Logger, cfg GridConfig) *GridService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.DefaultWeekStart == "" {
		cfg.DefaultWeekStart = dto.WeekStartSaturday
	}
	return &GridService{
		visits:   visits,
		branches: branches,
		cache:    cache,
		coverage: coverage,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// weekBounds returns the inclusive [start, end] day range of a week. The
// anchor is the preferred week-start weekday on or before January 1st, so
// every day of the year belongs to exactly one week. The last week absorbs
// the days left over past 52*7, keeping late-December visits on the grid.
func weekBounds(year, week int, weekStart string) (time.Time, time.Time) {
	target := time.Saturday
	if weekStart == dto.WeekStartSunday {
		target = time.Sunday
	}
	anchor := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for anchor.Weekday() != target {
		anchor = anchor.AddDate(0, 0, -1)
	}
	start := anchor.AddDate(0, 0, (week-1)*7)
	end := start.AddDate(0, 0, 6)
	if week == weeksPerYear {
		if yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC); yearEnd.After(end) {
			end = yearEnd
		}
	}
	return start, end
}

// ProjectWeek derives one cell per branch from the visits falling inside the
// window. Archived visits and visits with unparseable dates never match.
func (s *GridService) ProjectWeek(branches []models.Branch, visits []models.Visit, weekStart, weekEnd time.Time) []dto.BranchWeekCell {
	byBranch := make(map[string][]models.Visit, len(branches))
	for _, visit := range visits {
		if !visit.Active() || !visit.ScheduledDate.InRange(weekStart, weekEnd) {
			continue
		}
		byBranch[visit.BranchID] = append(byBranch[visit.BranchID], visit)
	}

	cells := make([]dto.BranchWeekCell, 0, len(branches))
	for _, branch := range branches {
		matched := byBranch[branch.ID]
		if matched == nil {
			matched = []models.Visit{}
		}
		cells = append(cells, dto.BranchWeekCell{
			BranchID: branch.ID,
			Visits:   matched,
			Status:   models.DeriveCellStatus(matched),
		})
	}
	return cells
}

// AnnualMatrix builds the 52-week projection for the requested branches,
// serving from the Redis cache when a fresh copy exists.
func (s *GridService) AnnualMatrix(ctx context.Context, query dto.AnnualMatrixQuery) (*dto.AnnualMatrixResponse, error) {
	if query.Year < 2000 || query.Year > 2100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year must be between 2000 and 2100")
	}
	weekStart := query.PreferredWeekStart
	if weekStart == "" {
		weekStart = s.cfg.DefaultWeekStart
	}

	branches, err := s.resolveBranches(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(branches) == 0 {
		return &dto.AnnualMatrixResponse{Year: query.Year, Weeks: []dto.WeekData{}, GeneratedAt: time.Now().UTC()}, nil
	}

	key := s.matrixCacheKey(query.Year, weekStart, query.CompanyID, branches)
	if s.cache != nil {
		lookupStart := time.Now()
		var cached dto.AnnualMatrixResponse
		err := s.cache.Get(ctx, key, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(lookupStart))
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("grid cache read failed", "key", key, "error", err)
		}
	}

	branchIDs := make([]string, 0, len(branches))
	for _, branch := range branches {
		branchIDs = append(branchIDs, branch.ID)
	}
	visits, err := s.visits.ListByBranches(ctx, branchIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visits for grid")
	}

	weeks := make([]dto.WeekData, 0, weeksPerYear)
	for week := 1; week <= weeksPerYear; week++ {
		start, end := weekBounds(query.Year, week, weekStart)
		weeks = append(weeks, dto.WeekData{
			WeekNumber: week,
			WeekStart:  start,
			WeekEnd:    end,
			Branches:   s.ProjectWeek(branches, visits, start, end),
		})
	}

	resp := &dto.AnnualMatrixResponse{
		Year:        query.Year,
		Weeks:       weeks,
		GeneratedAt: time.Now().UTC(),
	}

	if s.cache != nil {
		writeStart := time.Now()
		if err := s.cache.Set(ctx, key, resp, s.cfg.CacheTTL); err != nil {
			s.logger.Sugar().Warnw("grid cache write failed", "key", key, "error", err)
		}
		s.metrics.ObserveCacheWrite(time.Since(writeStart))
	}
	return resp, nil
}

// Compliance reports required versus fulfilled regular visits for each branch
// in the year. Visits outside every covering contract window are tolerated in
// the store but excluded from the completion ratio.
func (s *GridService) Compliance(ctx context.Context, year int, branchIDs []string) ([]dto.BranchCompliance, error) {
	if year < 2000 || year > 2100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year must be between 2000 and 2100")
	}
	branches, err := s.resolveBranches(ctx, dto.AnnualMatrixQuery{Year: year, BranchIDs: branchIDs})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(branches))
	for _, branch := range branches {
		ids = append(ids, branch.ID)
	}
	visits, err := s.visits.ListByBranches(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visits for compliance")
	}
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	result := make([]dto.BranchCompliance, 0, len(branches))
	for _, branch := range branches {
		quota, err := s.coverage.RequiredVisits(ctx, branch.ID, year)
		if err != nil {
			return nil, err
		}
		contracts, err := s.coverage.ContractsCoveringBranch(ctx, branch.ID)
		if err != nil {
			return nil, err
		}

		var planned, completed int
		for _, visit := range visits {
			if visit.BranchID != branch.ID || visit.Type != models.VisitTypeRegular {
				continue
			}
			if !visit.Active() || !visit.ScheduledDate.InRange(yearStart, yearEnd) {
				continue
			}
			if !countsForAnyContract(visit, contracts) {
				continue
			}
			planned++
			if visit.Status == models.VisitStatusCompleted {
				completed++
			}
		}

		rate := 0.0
		if quota.Regular > 0 {
			rate = float64(completed) / float64(quota.Regular)
		}
		result = append(result, dto.BranchCompliance{
			BranchID:        branch.ID,
			Year:            year,
			RequiredRegular: quota.Regular,
			Planned:         planned,
			Completed:       completed,
			CompletionRate:  rate,
		})
	}
	return result, nil
}

// Invalidate drops every cached projection. Called after any visit mutation.
func (s *GridService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeleteByPattern(ctx, "grid:annual:*"); err != nil {
		s.logger.Sugar().Warnw("grid cache invalidation failed", "error", err)
		return err
	}
	return nil
}

func (s *GridService) resolveBranches(ctx context.Context, query dto.AnnualMatrixQuery) ([]models.Branch, error) {
	var branches []models.Branch
	var err error
	if len(query.BranchIDs) > 0 {
		branches, err = s.branches.ListByIDs(ctx, query.BranchIDs)
	} else {
		branches, err = s.branches.ListActive(ctx, query.CompanyID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load branches")
	}
	return branches, nil
}

func (s *GridService) matrixCacheKey(year int, weekStart, companyID string, branches []models.Branch) string {
	ids := make([]string, 0, len(branches))
	for _, branch := range branches {
		ids = append(ids, branch.ID)
	}
	sort.Strings(ids)
	if companyID == "" {
		companyID = "all"
	}
	return fmt.Sprintf("grid:annual:%d:%s:%s:%s", year, weekStart, companyID, strings.Join(ids, ","))
}

func countsForAnyContract(visit models.Visit, contracts []models.Contract) bool {
	for _, contract := range contracts {
		if visit.CountsTowardCompliance(contract) {
			return true
		}
	}
	return false
}
