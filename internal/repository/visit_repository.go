package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fsm-visit-api/internal/models"
)

const visitColumns = `id, branch_id, contract_id, company_id, type, status, scheduled_date, completed_date, results,
fire_extinguisher, fire_alarm, fire_suppression, gas_system, foam_system, is_archived, created_by, created_at, updated_at`

// VisitRepository provides persistence for visit records.
type VisitRepository struct {
	db *sqlx.DB
}

// NewVisitRepository creates a new visit repository.
func NewVisitRepository(db *sqlx.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// List returns visits with optional filtering and pagination.
func (r *VisitRepository) List(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int, error) {
	base := "FROM visits WHERE is_archived = FALSE"
	var conditions []string
	var args []interface{}

	if filter.BranchID != "" {
		conditions = append(conditions, fmt.Sprintf("branch_id = $%d", len(args)+1))
		args = append(args, filter.BranchID)
	}
	if filter.ContractID != "" {
		conditions = append(conditions, fmt.Sprintf("contract_id = $%d", len(args)+1))
		args = append(args, filter.ContractID)
	}
	if filter.CompanyID != "" {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", len(args)+1))
		args = append(args, filter.CompanyID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at ASC LIMIT %d OFFSET %d", visitColumns, base, size, offset)
	var visits []models.Visit
	if err := r.db.SelectContext(ctx, &visits, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list visits: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visits: %w", err)
	}

	return visits, total, nil
}

// FindByID loads a visit by id, archived or not.
func (r *VisitRepository) FindByID(ctx context.Context, id string) (*models.Visit, error) {
	query := fmt.Sprintf("SELECT %s FROM visits WHERE id = $1", visitColumns)
	var visit models.Visit
	if err := r.db.GetContext(ctx, &visit, query, id); err != nil {
		return nil, err
	}
	return &visit, nil
}

// ListByBranch returns non-archived visits for a branch.
func (r *VisitRepository) ListByBranch(ctx context.Context, branchID string) ([]models.Visit, error) {
	query := fmt.Sprintf("SELECT %s FROM visits WHERE branch_id = $1 AND is_archived = FALSE ORDER BY created_at ASC", visitColumns)
	var visits []models.Visit
	if err := r.db.SelectContext(ctx, &visits, query, branchID); err != nil {
		return nil, fmt.Errorf("list visits by branch: %w", err)
	}
	return visits, nil
}

// ListByBranches returns non-archived visits for a set of branches.
func (r *VisitRepository) ListByBranches(ctx context.Context, branchIDs []string) ([]models.Visit, error) {
	if len(branchIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM visits WHERE branch_id IN (?) AND is_archived = FALSE ORDER BY created_at ASC", visitColumns),
		branchIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("build visits-by-branches query: %w", err)
	}
	query = r.db.Rebind(query)
	var visits []models.Visit
	if err := r.db.SelectContext(ctx, &visits, query, args...); err != nil {
		return nil, fmt.Errorf("list visits by branches: %w", err)
	}
	return visits, nil
}

// ListAll returns every non-archived visit. Scheduled dates are stored in a
// textual format, so range filtering happens in the service layer after
// parsing; the repository stays format-agnostic.
func (r *VisitRepository) ListAll(ctx context.Context) ([]models.Visit, error) {
	query := fmt.Sprintf("SELECT %s FROM visits WHERE is_archived = FALSE ORDER BY created_at ASC", visitColumns)
	var visits []models.Visit
	if err := r.db.SelectContext(ctx, &visits, query); err != nil {
		return nil, fmt.Errorf("list all visits: %w", err)
	}
	return visits, nil
}

// Create stores a new visit record.
func (r *VisitRepository) Create(ctx context.Context, visit *models.Visit) error {
	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if visit.CreatedAt.IsZero() {
		visit.CreatedAt = now
	}
	visit.UpdatedAt = now

	const query = `INSERT INTO visits (id, branch_id, contract_id, company_id, type, status, scheduled_date, completed_date, results,
fire_extinguisher, fire_alarm, fire_suppression, gas_system, foam_system, is_archived, created_by, created_at, updated_at)
VALUES (:id, :branch_id, :contract_id, :company_id, :type, :status, :scheduled_date, :completed_date, :results,
:fire_extinguisher, :fire_alarm, :fire_suppression, :gas_system, :foam_system, :is_archived, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, visit); err != nil {
		return fmt.Errorf("create visit: %w", err)
	}
	return nil
}

// Update modifies a visit record.
func (r *VisitRepository) Update(ctx context.Context, visit *models.Visit) error {
	visit.UpdatedAt = time.Now().UTC()
	const query = `UPDATE visits SET type = :type, status = :status, scheduled_date = :scheduled_date,
completed_date = :completed_date, results = :results, is_archived = :is_archived, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, visit); err != nil {
		return fmt.Errorf("update visit: %w", err)
	}
	return nil
}

// Archive soft-deletes a visit, keeping the row for audit purposes.
func (r *VisitRepository) Archive(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE visits SET is_archived = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("archive visit: %w", err)
	}
	return nil
}

// Delete hard-removes a visit by id.
func (r *VisitRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM visits WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	return nil
}

// BulkCreate inserts many visits within a single transaction.
func (r *VisitRepository) BulkCreate(ctx context.Context, visits []models.Visit) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create visits: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.bulkInsertVisits(ctx, tx, visits); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create visits: %w", err)
	}
	return nil
}

// BulkCreateWithTx inserts visits using an existing transaction.
func (r *VisitRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, visits []models.Visit) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.bulkInsertVisits(ctx, tx, visits)
}

func (r *VisitRepository) bulkInsertVisits(ctx context.Context, exec sqlx.ExtContext, visits []models.Visit) error {
	now := time.Now().UTC()
	const query = `INSERT INTO visits (id, branch_id, contract_id, company_id, type, status, scheduled_date, completed_date, results,
fire_extinguisher, fire_alarm, fire_suppression, gas_system, foam_system, is_archived, created_by, created_at, updated_at)
VALUES (:id, :branch_id, :contract_id, :company_id, :type, :status, :scheduled_date, :completed_date, :results,
:fire_extinguisher, :fire_alarm, :fire_suppression, :gas_system, :foam_system, :is_archived, :created_by, :created_at, :updated_at)`

	for i := range visits {
		payload := visits[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err := sqlx.NamedExecContext(ctx, exec, query, &payload); err != nil {
			return fmt.Errorf("bulk insert visit: %w", err)
		}
		visits[i] = payload
	}
	return nil
}
