package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/dates"
	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

type visitStore interface {
	List(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int, error)
	FindByID(ctx context.Context, id string) (*models.Visit, error)
	ListByBranch(ctx context.Context, branchID string) ([]models.Visit, error)
	ListAll(ctx context.Context) ([]models.Visit, error)
	Create(ctx context.Context, visit *models.Visit) error
	Update(ctx context.Context, visit *models.Visit) error
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type batchResolver interface {
	CoveringBatch(ctx context.Context, contractID, branchID string) (*models.Contract, *models.ServiceBatch, error)
}

type gridInvalidator interface {
	Invalidate(ctx context.Context) error
}

// VisitService owns the visit record lifecycle. Every mutation invalidates
// the grid cache so the next projection re-reads the store.
type VisitService struct {
	visits    visitStore
	coverage  batchResolver
	grid      gridInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVisitService wires the visit store.
func NewVisitService(visits visitStore, coverage batchResolver, grid gridInvalidator, validate *validator.Validate, logger *zap.Logger) *VisitService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitService{
		visits:    visits,
		coverage:  coverage,
		grid:      grid,
		validator: validate,
		logger:    logger,
	}
}

// List returns visits matching the filter with pagination metadata.
func (s *VisitService) List(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int, error) {
	visits, total, err := s.visits.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visits")
	}
	return visits, total, nil
}

// Get loads one visit.
func (s *VisitService) Get(ctx context.Context, id string) (*models.Visit, error) {
	visit, err := s.visits.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visit")
	}
	return visit, nil
}

// VisitsForBranch returns the branch's non-archived visits.
func (s *VisitService) VisitsForBranch(ctx context.Context, branchID string) ([]models.Visit, error) {
	if branchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "branch id is required")
	}
	visits, err := s.visits.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list branch visits")
	}
	return visits, nil
}

// VisitsInRange returns visits scheduled inside [start, end]. Visits whose
// stored date does not parse stay invisible to range queries.
func (s *VisitService) VisitsInRange(ctx context.Context, start, end time.Time) ([]models.Visit, error) {
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes start")
	}
	all, err := s.visits.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visits")
	}
	result := make([]models.Visit, 0, len(all))
	for _, visit := range all {
		if visit.ScheduledDate.InRange(start, end) {
			result = append(result, visit)
		}
	}
	return result, nil
}

// Create stores a single scheduled visit. The (branch, contract) pair must be
// covered by a service batch of a non-archived contract.
func (s *VisitService) Create(ctx context.Context, req dto.CreateVisitRequest) (*models.Visit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid visit payload")
	}
	scheduled, err := dates.Parse(req.ScheduledDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnparseableDate.Code, appErrors.ErrUnparseableDate.Status, appErrors.ErrUnparseableDate.Message)
	}
	contract, batch, err := s.coverage.CoveringBatch(ctx, req.ContractID, req.BranchID)
	if err != nil {
		return nil, err
	}

	visit := &models.Visit{
		BranchID:      req.BranchID,
		ContractID:    contract.ID,
		CompanyID:     contract.CompanyID,
		Type:          req.Type,
		Status:        models.VisitStatusScheduled,
		ScheduledDate: scheduled,
		VisitServices: batch.Services(),
		CreatedBy:     req.CreatedBy,
	}
	if err := s.visits.Create(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create visit")
	}
	s.invalidate(ctx)
	return visit, nil
}

// Update patches mutable visit fields.
func (s *VisitService) Update(ctx context.Context, id string, req dto.UpdateVisitRequest) (*models.Visit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid visit patch")
	}
	visit, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ScheduledDate != nil {
		scheduled, err := dates.Parse(*req.ScheduledDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnparseableDate.Code, appErrors.ErrUnparseableDate.Status, appErrors.ErrUnparseableDate.Message)
		}
		visit.ScheduledDate = scheduled
	}
	if req.Status != nil {
		visit.Status = *req.Status
	}
	if err := s.visits.Update(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visit")
	}
	s.invalidate(ctx)
	return visit, nil
}

// Complete closes a visit with inspection findings.
func (s *VisitService) Complete(ctx context.Context, id string, req dto.CompleteVisitRequest) (*models.Visit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	visit, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit.Status == models.VisitStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "visit already completed")
	}
	if visit.Status == models.VisitStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled visits cannot be completed")
	}
	completed, err := dates.Parse(req.CompletedDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnparseableDate.Code, appErrors.ErrUnparseableDate.Status, appErrors.ErrUnparseableDate.Message)
	}

	results := models.VisitResults{
		OverallStatus:   req.OverallStatus,
		Issues:          req.Issues,
		Recommendations: req.Recommendations,
	}
	if req.NextVisitDate != "" {
		next, err := dates.Parse(req.NextVisitDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnparseableDate.Code, appErrors.ErrUnparseableDate.Status, "next visit date cannot be parsed")
		}
		results.NextVisitDate = next
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode visit results")
	}

	visit.Status = models.VisitStatusCompleted
	visit.CompletedDate = completed
	visit.Results = types.JSONText(payload)
	if err := s.visits.Update(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete visit")
	}
	s.invalidate(ctx)
	return visit, nil
}

// Cancel marks a visit cancelled. Completed visits stay completed.
func (s *VisitService) Cancel(ctx context.Context, id string) (*models.Visit, error) {
	visit, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit.Status == models.VisitStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "completed visits cannot be cancelled")
	}
	visit.Status = models.VisitStatusCancelled
	if err := s.visits.Update(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel visit")
	}
	s.invalidate(ctx)
	return visit, nil
}

// Reschedule moves a visit to a new date and marks it rescheduled.
func (s *VisitService) Reschedule(ctx context.Context, id string, req dto.RescheduleVisitRequest) (*models.Visit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	visit, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit.Status == models.VisitStatusCompleted || visit.Status == models.VisitStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only open visits can be rescheduled")
	}
	scheduled, err := dates.Parse(req.ScheduledDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnparseableDate.Code, appErrors.ErrUnparseableDate.Status, appErrors.ErrUnparseableDate.Message)
	}
	visit.ScheduledDate = scheduled
	visit.Status = models.VisitStatusRescheduled
	if err := s.visits.Update(ctx, visit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule visit")
	}
	s.invalidate(ctx)
	return visit, nil
}

// Delete removes a visit. Visits still in the scheduled state are hard
// deleted; anything that carries field data is archived instead.
func (s *VisitService) Delete(ctx context.Context, id string) error {
	visit, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if visit.Status == models.VisitStatusScheduled || visit.Status == models.VisitStatusRescheduled {
		err = s.visits.Delete(ctx, id)
	} else {
		err = s.visits.Archive(ctx, id)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete visit")
	}
	s.invalidate(ctx)
	return nil
}

func (s *VisitService) invalidate(ctx context.Context) {
	if s.grid == nil {
		return
	}
	if err := s.grid.Invalidate(ctx); err != nil {
		s.logger.Sugar().Warnw("grid invalidation after visit mutation failed", "error", err)
	}
}
