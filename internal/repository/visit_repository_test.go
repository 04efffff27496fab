package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fsm-visit-api/internal/models"
)

func newVisitRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func visitRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "branch_id", "contract_id", "company_id", "type", "status", "scheduled_date", "completed_date", "results",
		"fire_extinguisher", "fire_alarm", "fire_suppression", "gas_system", "foam_system", "is_archived", "created_by", "created_at", "updated_at",
	})
}

func TestVisitRepositoryFindByIDParsesScheduledDate(t *testing.T) {
	db, mock, cleanup := newVisitRepoMock(t)
	defer cleanup()
	repo := NewVisitRepository(db)

	rows := visitRows().AddRow(
		"visit-1", "branch-1", "contract-1", "company-1", "regular", "scheduled", "5-Jan-2026", nil, nil,
		true, false, false, false, false, false, "planner", time.Now(), time.Now(),
	)
	mock.ExpectQuery("SELECT (.+) FROM visits WHERE id = \\$1").
		WithArgs("visit-1").
		WillReturnRows(rows)

	visit, err := repo.FindByID(context.Background(), "visit-1")
	require.NoError(t, err)
	require.True(t, visit.ScheduledDate.Valid)
	require.Equal(t, "5-Jan-2026", visit.ScheduledDate.String())
	require.Equal(t, models.VisitTypeRegular, visit.Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepositoryUnparseableDateDoesNotFailScan(t *testing.T) {
	db, mock, cleanup := newVisitRepoMock(t)
	defer cleanup()
	repo := NewVisitRepository(db)

	rows := visitRows().AddRow(
		"visit-2", "branch-1", "contract-1", "company-1", "regular", "scheduled", "garbage-date", nil, nil,
		false, false, false, false, false, false, "user-1", time.Now(), time.Now(),
	)
	mock.ExpectQuery("SELECT (.+) FROM visits WHERE branch_id = \\$1 AND is_archived = FALSE").
		WithArgs("branch-1").
		WillReturnRows(rows)

	visits, err := repo.ListByBranch(context.Background(), "branch-1")
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.False(t, visits[0].ScheduledDate.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepositoryListFiltersAndCounts(t *testing.T) {
	db, mock, cleanup := newVisitRepoMock(t)
	defer cleanup()
	repo := NewVisitRepository(db)

	rows := visitRows().AddRow(
		"visit-1", "branch-1", "contract-1", "company-1", "regular", "scheduled", "10-Feb-2026", nil, nil,
		true, true, false, false, false, false, "planner", time.Now(), time.Now(),
	)
	mock.ExpectQuery("SELECT (.+) FROM visits WHERE is_archived = FALSE AND branch_id = \\$1 AND status = \\$2").
		WithArgs("branch-1", models.VisitStatusScheduled).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM visits WHERE is_archived = FALSE AND branch_id = $1 AND status = $2")).
		WithArgs("branch-1", models.VisitStatusScheduled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	visits, total, err := repo.List(context.Background(), models.VisitFilter{
		BranchID: "branch-1",
		Status:   models.VisitStatusScheduled,
	})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepositoryListByBranches(t *testing.T) {
	db, mock, cleanup := newVisitRepoMock(t)
	defer cleanup()
	repo := NewVisitRepository(db)

	rows := visitRows().AddRow(
		"visit-1", "branch-1", "contract-1", "company-1", "emergency", "scheduled", "1-Mar-2026", nil, nil,
		false, false, true, false, false, false, "planner", time.Now(), time.Now(),
	)
	mock.ExpectQuery("SELECT (.+) FROM visits WHERE branch_id IN \\(\\$1, \\$2\\) AND is_archived = FALSE").
		WithArgs("branch-1", "branch-2").
		WillReturnRows(rows)

	visits, err := repo.ListByBranches(context.Background(), []string{"branch-1", "branch-2"})
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, models.VisitTypeEmergency, visits[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newVisitRepoMock(t)
	defer cleanup()
	repo := NewVisitRepository(db)

	mock.ExpectExec("INSERT INTO visits").
		WillReturnResult(sqlmock.NewResult(1, 1))

	visit := &models.Visit{
		BranchID:   "branch-1",
		ContractID: "contract-1",
		CompanyID:  "company-1",
		Type:       models.VisitTypeRegular,
		Status:     models.VisitStatusScheduled,
	}
	require.NoError(t, repo.Create(context.Background(), visit))
	require.NotEmpty(t, visit.ID)
	require.False(t, visit.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepositoryDeleteAndArchive(t *testing.T) {
	db, mock, cleanup := newVisitRepoMock(t)
	defer cleanup()
	repo := NewVisitRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM visits WHERE id = $1")).
		WithArgs("visit-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "visit-1"))

	mock.ExpectExec("UPDATE visits SET is_archived = TRUE").
		WithArgs("visit-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Archive(context.Background(), "visit-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitRepositoryBulkCreateRunsInTransaction(t *testing.T) {
	db, mock, cleanup := newVisitRepoMock(t)
	defer cleanup()
	repo := NewVisitRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO visits").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO visits").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	visits := []models.Visit{
		{BranchID: "branch-1", ContractID: "contract-1", CompanyID: "company-1", Type: models.VisitTypeRegular, Status: models.VisitStatusScheduled},
		{BranchID: "branch-2", ContractID: "contract-1", CompanyID: "company-1", Type: models.VisitTypeRegular, Status: models.VisitStatusScheduled},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), visits))
	require.NotEmpty(t, visits[0].ID)
	require.NotEmpty(t, visits[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
