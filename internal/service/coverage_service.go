package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/models"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

type coverageContractSource interface {
	ListActive(ctx context.Context) ([]models.Contract, error)
	FindByID(ctx context.Context, id string) (*models.Contract, error)
}

// CoverageService answers which service batches cover a branch and how many
// visits those batches require per year. Contracts are read-only inputs here;
// the service never mutates them.
type CoverageService struct {
	contracts coverageContractSource
	logger    *zap.Logger
}

// NewCoverageService wires the coverage reader.
func NewCoverageService(contracts coverageContractSource, logger *zap.Logger) *CoverageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoverageService{contracts: contracts, logger: logger}
}

// BatchesCoveringBranch returns every batch of every active contract whose
// branch list includes the branch.
func (s *CoverageService) BatchesCoveringBranch(ctx context.Context, branchID string) ([]models.ServiceBatch, error) {
	if branchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "branch id is required")
	}
	contracts, err := s.contracts.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contracts")
	}
	var result []models.ServiceBatch
	for _, contract := range contracts {
		for _, batch := range contract.Batches {
			if batch.CoversBranch(branchID) {
				result = append(result, batch)
			}
		}
	}
	return result, nil
}

// ContractsCoveringBranch returns the active contracts that include the branch
// in at least one batch, batches attached.
func (s *CoverageService) ContractsCoveringBranch(ctx context.Context, branchID string) ([]models.Contract, error) {
	if branchID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "branch id is required")
	}
	contracts, err := s.contracts.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contracts")
	}
	var result []models.Contract
	for _, contract := range contracts {
		for _, batch := range contract.Batches {
			if batch.CoversBranch(branchID) {
				result = append(result, contract)
				break
			}
		}
	}
	return result, nil
}

// RequiredVisits sums the annual visit obligation for a branch across all
// active contracts whose period overlaps the year. A branch covered by
// multiple batches accumulates every quota.
func (s *CoverageService) RequiredVisits(ctx context.Context, branchID string, year int) (models.VisitQuota, error) {
	contracts, err := s.ContractsCoveringBranch(ctx, branchID)
	if err != nil {
		return models.VisitQuota{}, err
	}
	var quota models.VisitQuota
	for _, contract := range contracts {
		if !contract.OverlapsYear(year) {
			continue
		}
		for _, batch := range contract.Batches {
			if !batch.CoversBranch(branchID) {
				continue
			}
			quota.Regular += batch.RegularVisitsPerYear
			quota.Emergency += batch.EmergencyVisitsPerYear
		}
	}
	return quota, nil
}

// CoveringBatch resolves the (contract, branch) pair to the first batch that
// covers the branch. Visits may only be created against a covered pair.
func (s *CoverageService) CoveringBatch(ctx context.Context, contractID, branchID string) (*models.Contract, *models.ServiceBatch, error) {
	contract, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "contract not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if contract.IsArchived {
		return nil, nil, appErrors.Clone(appErrors.ErrContractArchived, "")
	}
	for i := range contract.Batches {
		if contract.Batches[i].CoversBranch(branchID) {
			return contract, &contract.Batches[i], nil
		}
	}
	return nil, nil, appErrors.Clone(appErrors.ErrBranchNotCovered, "")
}
