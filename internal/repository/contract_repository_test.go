package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newContractRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func batchRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "contract_id", "position", "branch_ids", "fire_extinguisher", "fire_alarm", "fire_suppression",
		"gas_system", "foam_system", "regular_visits_per_year", "emergency_visits_per_year", "created_at",
	})
}

func TestContractRepositoryListActiveAttachesBatches(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	contractRows := sqlmock.NewRows([]string{"id", "company_id", "start_date", "end_date", "is_archived", "created_at", "updated_at"}).
		AddRow("contract-1", "company-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), false, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM contracts WHERE is_archived = FALSE").
		WillReturnRows(contractRows)

	batches := batchRows().
		AddRow("batch-1", "contract-1", 1, `["branch-1","branch-2"]`, true, true, false, false, false, 4, 1, time.Now()).
		AddRow("batch-2", "contract-1", 2, `["branch-3"]`, false, false, true, false, false, 2, 0, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM service_batches WHERE contract_id IN \\(\\$1\\)").
		WithArgs("contract-1").
		WillReturnRows(batches)

	contracts, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	require.Len(t, contracts[0].Batches, 2)
	require.True(t, contracts[0].Batches[0].CoversBranch("branch-2"))
	require.False(t, contracts[0].Batches[1].CoversBranch("branch-2"))
	require.Equal(t, 4, contracts[0].Batches[0].RegularVisitsPerYear)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContractRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newContractRepoMock(t)
	defer cleanup()
	repo := NewContractRepository(db)

	contractRows := sqlmock.NewRows([]string{"id", "company_id", "start_date", "end_date", "is_archived", "created_at", "updated_at"}).
		AddRow("contract-1", "company-1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), false, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM contracts WHERE id = \\$1").
		WithArgs("contract-1").
		WillReturnRows(contractRows)
	mock.ExpectQuery("SELECT (.+) FROM service_batches WHERE contract_id IN \\(\\$1\\)").
		WithArgs("contract-1").
		WillReturnRows(batchRows().AddRow("batch-1", "contract-1", 1, `["branch-1"]`, true, false, false, false, false, 4, 0, time.Now()))

	contract, err := repo.FindByID(context.Background(), "contract-1")
	require.NoError(t, err)
	require.Len(t, contract.Batches, 1)
	require.True(t, contract.OverlapsYear(2026))
	require.False(t, contract.OverlapsYear(2027))
	require.NoError(t, mock.ExpectationsWereMet())
}
