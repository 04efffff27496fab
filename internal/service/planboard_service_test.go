package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
	"github.com/noah-isme/fsm-visit-api/internal/models"
	appErrors "github.com/noah-isme/fsm-visit-api/pkg/errors"
)

type planboardStoreStub struct {
	*visitStoreStub
	bulk    [][]models.Visit
	bulkErr error
}

func newPlanboardStoreStub(visits ...models.Visit) *planboardStoreStub {
	return &planboardStoreStub{visitStoreStub: newVisitStoreStub(visits...)}
}

func (s *planboardStoreStub) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, visits []models.Visit) error {
	if s.bulkErr != nil {
		return s.bulkErr
	}
	chunk := make([]models.Visit, len(visits))
	copy(chunk, visits)
	s.bulk = append(s.bulk, chunk)
	for i := range chunk {
		chunk[i].ID = fmt.Sprintf("bulk-%d-%d", len(s.bulk), i)
		s.visits[chunk[i].ID] = &chunk[i]
	}
	return nil
}

func planboardCoverageFor(branchIDs ...string) coverageStub {
	contract := contractFor("contract-1", 2030, batchFor("contract-1", branchIDs, 4, 0))
	return coverageStub{contracts: []models.Contract{contract}}
}

// Week 10 of 2030 with a Saturday anchor runs 2 Mar through 8 Mar.
func weekTenRequest(branchID string, confirm bool) dto.ToggleCellRequest {
	return dto.ToggleCellRequest{BranchID: branchID, Year: 2030, WeekNumber: 10, Confirm: confirm}
}

func TestPlanboardToggleCellCreatesOnEmptyCell(t *testing.T) {
	store := newPlanboardStoreStub()
	grid := &invalidatorStub{}
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1"), grid, noopTxProvider{}, nil, zap.NewNop(), PlanboardConfig{})

	resp, err := svc.ToggleCell(context.Background(), weekTenRequest("branch-1", false))
	require.NoError(t, err)
	assert.Equal(t, ToggleActionCreated, resp.Action)
	assert.Equal(t, models.CellStatusPlanned, resp.Status)
	require.NotNil(t, resp.Visit)
	assert.Equal(t, "2-Mar-2030", resp.Visit.ScheduledDate.String())
	assert.Equal(t, "planboard", resp.Visit.CreatedBy)
	assert.Equal(t, 1, store.created)
	assert.Equal(t, 1, grid.calls)
}

func TestPlanboardToggleCellDeletesPlainPlannedCell(t *testing.T) {
	first := visitOn("branch-1", "3-Mar-2030", models.VisitTypeRegular, models.VisitStatusScheduled)
	second := visitOn("branch-1", "5-Mar-2030", models.VisitTypeRegular, models.VisitStatusRescheduled)
	store := newPlanboardStoreStub(first, second)
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1"), nil, noopTxProvider{}, nil, zap.NewNop(), PlanboardConfig{})

	resp, err := svc.ToggleCell(context.Background(), weekTenRequest("branch-1", false))
	require.NoError(t, err)
	assert.Equal(t, ToggleActionDeleted, resp.Action)
	assert.Equal(t, models.CellStatusNone, resp.Status)
	assert.Len(t, store.deleted, 2)
	assert.Empty(t, store.archived)
}

func TestPlanboardToggleCellRequiresConfirmationForFieldData(t *testing.T) {
	completed := visitOn("branch-1", "3-Mar-2030", models.VisitTypeRegular, models.VisitStatusCompleted)
	scheduled := visitOn("branch-1", "5-Mar-2030", models.VisitTypeRegular, models.VisitStatusScheduled)
	store := newPlanboardStoreStub(completed, scheduled)
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1"), nil, noopTxProvider{}, nil, zap.NewNop(), PlanboardConfig{})

	_, err := svc.ToggleCell(context.Background(), weekTenRequest("branch-1", false))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfirmationRequired.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.deleted)

	resp, err := svc.ToggleCell(context.Background(), weekTenRequest("branch-1", true))
	require.NoError(t, err)
	assert.Equal(t, ToggleActionCleared, resp.Action)
	assert.Equal(t, []string{scheduled.ID}, store.deleted)
	assert.Equal(t, []string{completed.ID}, store.archived)
}

func TestPlanboardMoveVisitChecksTargetCapacity(t *testing.T) {
	moving := visitOn("branch-1", "2-Mar-2030", models.VisitTypeRegular, models.VisitStatusScheduled)
	blocker := visitOn("branch-2", "5-Mar-2030", models.VisitTypeRegular, models.VisitStatusScheduled)
	store := newPlanboardStoreStub(moving, blocker)
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1", "branch-2"), &invalidatorStub{}, noopTxProvider{}, nil, zap.NewNop(), PlanboardConfig{MaxVisitsPerDay: 1})

	_, err := svc.MoveVisit(context.Background(), moving.ID, dto.MoveVisitRequest{TargetDate: "5-Mar-2030"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityConflict.Code, appErrors.FromError(err).Code)

	moved, err := svc.MoveVisit(context.Background(), moving.ID, dto.MoveVisitRequest{TargetDate: "6-Mar-2030"})
	require.NoError(t, err)
	assert.Equal(t, "6-Mar-2030", moved.ScheduledDate.String())
}

func TestPlanboardMoveVisitRejectsClosedVisits(t *testing.T) {
	done := visitOn("branch-1", "2-Mar-2030", models.VisitTypeRegular, models.VisitStatusCompleted)
	store := newPlanboardStoreStub(done)
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1"), nil, noopTxProvider{}, nil, zap.NewNop(), PlanboardConfig{})

	_, err := svc.MoveVisit(context.Background(), done.ID, dto.MoveVisitRequest{TargetDate: "6-Mar-2030"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPlanboardPlanWeekFillsEmptyCellsOnly(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	occupied := visitOn("branch-2", "4-Mar-2030", models.VisitTypeRegular, models.VisitStatusScheduled)
	store := newPlanboardStoreStub(occupied)
	grid := &invalidatorStub{}
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1", "branch-2"), grid, db, nil, zap.NewNop(), PlanboardConfig{})

	resp, err := svc.PlanWeek(context.Background(), dto.PlanWeekRequest{
		Year:       2030,
		WeekNumber: 10,
		BranchIDs:  []string{"branch-1", "branch-2", "branch-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.SuccessCount)
	require.Len(t, resp.FailedBranches, 1)
	assert.Equal(t, "branch-3", resp.FailedBranches[0].BranchID)
	require.Len(t, store.bulk, 1)
	require.Len(t, store.bulk[0], 1)
	assert.Equal(t, "branch-1", store.bulk[0][0].BranchID)
	assert.Equal(t, 1, grid.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanboardPlanWeekSpillsOverflowToNextDay(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	branchIDs := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		branchIDs = append(branchIDs, fmt.Sprintf("branch-%02d", i))
	}
	store := newPlanboardStoreStub()
	svc := NewPlanboardService(store, planboardCoverageFor(branchIDs...), &invalidatorStub{}, db, nil, zap.NewNop(), PlanboardConfig{MaxVisitsPerDay: 5})

	resp, err := svc.PlanWeek(context.Background(), dto.PlanWeekRequest{
		Year:       2030,
		WeekNumber: 10,
		BranchIDs:  branchIDs,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.SuccessCount)
	assert.Empty(t, resp.FailedBranches)

	require.Len(t, store.bulk, 1)
	require.Len(t, store.bulk[0], 10)
	perDay := make(map[string]int)
	for i, visit := range store.bulk[0] {
		assert.Equal(t, branchIDs[i], visit.BranchID)
		perDay[visit.ScheduledDate.String()]++
	}
	// The week opens on Saturday 2 Mar; the first five branches fill it, the
	// rest spill to Sunday 3 Mar instead of breaching the day cap.
	assert.Equal(t, 5, perDay["2-Mar-2030"])
	assert.Equal(t, 5, perDay["3-Mar-2030"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanboardPlanWeekReportsCommitFailurePerBranch(t *testing.T) {
	db, mock, cleanup := newTxProviderMock(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	store := newPlanboardStoreStub()
	store.bulkErr = errors.New("write failed")
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1", "branch-2"), nil, db, nil, zap.NewNop(), PlanboardConfig{})

	resp, err := svc.PlanWeek(context.Background(), dto.PlanWeekRequest{
		Year:       2030,
		WeekNumber: 10,
		BranchIDs:  []string{"branch-1", "branch-2"},
	})
	require.NoError(t, err)
	assert.Zero(t, resp.SuccessCount)
	require.Len(t, resp.FailedBranches, 2)
	assert.Equal(t, "batched write failed", resp.FailedBranches[0].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanboardBulkDeleteGatesRiskyVisits(t *testing.T) {
	scheduled := visitOn("branch-1", "2-Mar-2030", models.VisitTypeRegular, models.VisitStatusScheduled)
	emergency := visitOn("branch-1", "4-Mar-2030", models.VisitTypeEmergency, models.VisitStatusScheduled)
	completed := visitOn("branch-2", "5-Mar-2030", models.VisitTypeRegular, models.VisitStatusCompleted)
	store := newPlanboardStoreStub(scheduled, emergency, completed)
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1", "branch-2"), &invalidatorStub{}, noopTxProvider{}, nil, zap.NewNop(), PlanboardConfig{})

	ids := []string{scheduled.ID, emergency.ID, completed.ID}
	_, err := svc.BulkDelete(context.Background(), dto.BulkDeleteRequest{VisitIDs: ids})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfirmationRequired.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, emergency.ID)
	assert.Empty(t, store.deleted)

	resp, err := svc.BulkDelete(context.Background(), dto.BulkDeleteRequest{VisitIDs: ids, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.DeletedCount)
	assert.ElementsMatch(t, []string{scheduled.ID, emergency.ID}, store.deleted)
	assert.Equal(t, []string{completed.ID}, store.archived)
}

func TestPlanboardBulkDeleteReportsMissingVisits(t *testing.T) {
	scheduled := visitOn("branch-1", "2-Mar-2030", models.VisitTypeRegular, models.VisitStatusScheduled)
	store := newPlanboardStoreStub(scheduled)
	svc := NewPlanboardService(store, planboardCoverageFor("branch-1"), nil, noopTxProvider{}, nil, zap.NewNop(), PlanboardConfig{})

	resp, err := svc.BulkDelete(context.Background(), dto.BulkDeleteRequest{VisitIDs: []string{scheduled.ID, "ghost"}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.DeletedCount)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "ghost")
}
