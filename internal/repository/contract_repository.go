package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fsm-visit-api/internal/models"
)

// ContractRepository reads contracts and their service batches. Contracts are
// maintained by the surrounding CRUD subsystem; the planning engine never
// mutates them.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository creates a new contract repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// FindByID loads a contract with its batches.
func (r *ContractRepository) FindByID(ctx context.Context, id string) (*models.Contract, error) {
	const query = `SELECT id, company_id, start_date, end_date, is_archived, created_at, updated_at FROM contracts WHERE id = $1`
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, query, id); err != nil {
		return nil, err
	}
	batches, err := r.listBatches(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	contract.Batches = batches[id]
	return &contract, nil
}

// ListActive returns non-archived contracts with their batches attached,
// ordered by start date.
func (r *ContractRepository) ListActive(ctx context.Context) ([]models.Contract, error) {
	const query = `SELECT id, company_id, start_date, end_date, is_archived, created_at, updated_at
FROM contracts WHERE is_archived = FALSE ORDER BY start_date ASC`
	var contracts []models.Contract
	if err := r.db.SelectContext(ctx, &contracts, query); err != nil {
		return nil, fmt.Errorf("list active contracts: %w", err)
	}
	if len(contracts) == 0 {
		return contracts, nil
	}

	ids := make([]string, 0, len(contracts))
	for _, c := range contracts {
		ids = append(ids, c.ID)
	}
	batches, err := r.listBatches(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range contracts {
		contracts[i].Batches = batches[contracts[i].ID]
	}
	return contracts, nil
}

func (r *ContractRepository) listBatches(ctx context.Context, contractIDs []string) (map[string][]models.ServiceBatch, error) {
	query, args, err := sqlx.In(`SELECT id, contract_id, position, branch_ids, fire_extinguisher, fire_alarm, fire_suppression,
gas_system, foam_system, regular_visits_per_year, emergency_visits_per_year, created_at
FROM service_batches WHERE contract_id IN (?) ORDER BY contract_id, position ASC`, contractIDs)
	if err != nil {
		return nil, fmt.Errorf("build service batch query: %w", err)
	}
	query = r.db.Rebind(query)

	var batches []models.ServiceBatch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("list service batches: %w", err)
	}

	result := make(map[string][]models.ServiceBatch, len(contractIDs))
	for _, batch := range batches {
		result[batch.ContractID] = append(result[batch.ContractID], batch)
	}
	return result, nil
}
