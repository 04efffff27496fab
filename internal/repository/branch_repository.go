package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fsm-visit-api/internal/models"
)

// BranchRepository reads branches. Branch lifecycle is owned by the
// surrounding CRUD subsystem.
type BranchRepository struct {
	db *sqlx.DB
}

// NewBranchRepository creates a new branch repository.
func NewBranchRepository(db *sqlx.DB) *BranchRepository {
	return &BranchRepository{db: db}
}

// FindByID loads a branch by id.
func (r *BranchRepository) FindByID(ctx context.Context, id string) (*models.Branch, error) {
	const query = `SELECT id, company_id, name, city, is_archived, created_at, updated_at FROM branches WHERE id = $1`
	var branch models.Branch
	if err := r.db.GetContext(ctx, &branch, query, id); err != nil {
		return nil, err
	}
	return &branch, nil
}

// ListActive returns non-archived branches, optionally scoped to a company.
func (r *BranchRepository) ListActive(ctx context.Context, companyID string) ([]models.Branch, error) {
	var branches []models.Branch
	if companyID != "" {
		const query = `SELECT id, company_id, name, city, is_archived, created_at, updated_at
FROM branches WHERE is_archived = FALSE AND company_id = $1 ORDER BY name ASC`
		if err := r.db.SelectContext(ctx, &branches, query, companyID); err != nil {
			return nil, fmt.Errorf("list branches by company: %w", err)
		}
		return branches, nil
	}
	const query = `SELECT id, company_id, name, city, is_archived, created_at, updated_at
FROM branches WHERE is_archived = FALSE ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &branches, query); err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

// ListByIDs returns the non-archived subset of the requested branches.
func (r *BranchRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Branch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, company_id, name, city, is_archived, created_at, updated_at
FROM branches WHERE id IN (?) AND is_archived = FALSE ORDER BY name ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("build branches-by-ids query: %w", err)
	}
	query = r.db.Rebind(query)
	var branches []models.Branch
	if err := r.db.SelectContext(ctx, &branches, query, args...); err != nil {
		return nil, fmt.Errorf("list branches by ids: %w", err)
	}
	return branches, nil
}
