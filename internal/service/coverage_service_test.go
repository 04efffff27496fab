package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/models"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

func batchFor(contractID string, branchIDs []string, regular, emergency int) models.ServiceBatch {
	payload, _ := json.Marshal(branchIDs)
	return models.ServiceBatch{
		ID:                     contractID + "-batch",
		ContractID:             contractID,
		Position:               1,
		BranchIDs:              types.JSONText(payload),
		FireExtinguisher:       true,
		FireAlarm:              true,
		RegularVisitsPerYear:   regular,
		EmergencyVisitsPerYear: emergency,
	}
}

func contractFor(id string, year int, batches ...models.ServiceBatch) models.Contract {
	return models.Contract{
		ID:        id,
		CompanyID: "company-1",
		StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		Batches:   batches,
	}
}

type contractSourceStub struct {
	contracts []models.Contract
}

func (s contractSourceStub) ListActive(ctx context.Context) ([]models.Contract, error) {
	return s.contracts, nil
}

func (s contractSourceStub) FindByID(ctx context.Context, id string) (*models.Contract, error) {
	for _, contract := range s.contracts {
		if contract.ID == id {
			c := contract
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func TestCoverageServiceRequiredVisitsSumsAcrossBatches(t *testing.T) {
	source := contractSourceStub{contracts: []models.Contract{
		contractFor("contract-1", 2030,
			batchFor("contract-1", []string{"branch-1", "branch-2"}, 4, 1),
			batchFor("contract-1b", []string{"branch-1"}, 2, 0),
		),
		contractFor("contract-2", 2031, batchFor("contract-2", []string{"branch-1"}, 6, 2)),
	}}
	svc := NewCoverageService(source, zap.NewNop())

	quota, err := svc.RequiredVisits(context.Background(), "branch-1", 2030)
	require.NoError(t, err)
	assert.Equal(t, 6, quota.Regular)
	assert.Equal(t, 1, quota.Emergency)

	quota, err = svc.RequiredVisits(context.Background(), "branch-2", 2030)
	require.NoError(t, err)
	assert.Equal(t, 4, quota.Regular)

	quota, err = svc.RequiredVisits(context.Background(), "branch-9", 2030)
	require.NoError(t, err)
	assert.Zero(t, quota.Regular)
	assert.Zero(t, quota.Emergency)
}

func TestCoverageServiceBatchesCoveringBranch(t *testing.T) {
	source := contractSourceStub{contracts: []models.Contract{
		contractFor("contract-1", 2030, batchFor("contract-1", []string{"branch-1"}, 4, 0)),
		contractFor("contract-2", 2030, batchFor("contract-2", []string{"branch-2"}, 2, 0)),
	}}
	svc := NewCoverageService(source, zap.NewNop())

	batches, err := svc.BatchesCoveringBranch(context.Background(), "branch-1")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "contract-1", batches[0].ContractID)
}

func TestCoverageServiceCoveringBatch(t *testing.T) {
	archived := contractFor("contract-2", 2030, batchFor("contract-2", []string{"branch-1"}, 2, 0))
	archived.IsArchived = true
	source := contractSourceStub{contracts: []models.Contract{
		contractFor("contract-1", 2030, batchFor("contract-1", []string{"branch-1"}, 4, 0)),
		archived,
	}}
	svc := NewCoverageService(source, zap.NewNop())

	contract, batch, err := svc.CoveringBatch(context.Background(), "contract-1", "branch-1")
	require.NoError(t, err)
	assert.Equal(t, "contract-1", contract.ID)
	assert.True(t, batch.FireExtinguisher)

	_, _, err = svc.CoveringBatch(context.Background(), "contract-1", "branch-9")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBranchNotCovered.Code, appErrors.FromError(err).Code)

	_, _, err = svc.CoveringBatch(context.Background(), "contract-2", "branch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrContractArchived.Code, appErrors.FromError(err).Code)

	_, _, err = svc.CoveringBatch(context.Background(), "missing", "branch-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
