package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"book-rental-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const contractColumns = `id, book_id, owner_id, borrower_id, status, daily_price, late_daily_price,
	new_book_price_cap, start_date, end_date, next_charge_at, total_charged, created_at, updated_at`

// ContractRepo implements ports.ContractRepository.
type ContractRepo struct {
	pool Pool
}

// NewContractRepo creates a new ContractRepo.
func NewContractRepo(pool Pool) *ContractRepo {
	return &ContractRepo{pool: pool}
}

// Create inserts a new rental contract.
func (r *ContractRepo) Create(ctx context.Context, c *domain.RentalContract) error {
	query := `INSERT INTO rental_contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.BookID, c.OwnerID, c.BorrowerID, c.Status,
		c.DailyPrice, c.LateDailyPrice, c.NewBookPriceCap,
		c.StartDate, c.EndDate, c.NextChargeAt, c.TotalCharged,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	return nil
}

// GetByID fetches a contract by UUID (non-locking read).
func (r *ContractRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RentalContract, error) {
	query := `SELECT ` + contractColumns + ` FROM rental_contracts WHERE id = $1`
	return r.scanContract(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a contract with pessimistic locking.
// This MUST be called within a transaction.
func (r *ContractRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.RentalContract, error) {
	query := `SELECT ` + contractColumns + ` FROM rental_contracts WHERE id = $1 FOR UPDATE`
	return r.scanContract(tx.QueryRow(ctx, query, id))
}

// Update persists a contract's mutable fields within a transaction.
func (r *ContractRepo) Update(ctx context.Context, tx pgx.Tx, c *domain.RentalContract) error {
	query := `UPDATE rental_contracts
		SET status = $1, start_date = $2, end_date = $3, next_charge_at = $4, total_charged = $5, updated_at = $6
		WHERE id = $7`

	tag, err := tx.Exec(ctx, query,
		c.Status, c.StartDate, c.EndDate, c.NextChargeAt, c.TotalCharged, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract not found: %s", c.ID)
	}
	return nil
}

// ListByUser fetches every contract where the user is owner or borrower.
func (r *ContractRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RentalContract, error) {
	query := `SELECT ` + contractColumns + ` FROM rental_contracts
		WHERE owner_id = $1 OR borrower_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []domain.RentalContract
	for rows.Next() {
		c, err := r.scanContractRow(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contracts: %w", err)
	}
	return contracts, nil
}

// ListDueIDs returns ids of chargeable contracts whose next_charge_at has
// passed. No locks are taken; each id is re-checked under a row lock before
// charging.
func (r *ContractRepo) ListDueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `SELECT id FROM rental_contracts
		WHERE status IN ($1, $2) AND next_charge_at IS NOT NULL AND next_charge_at <= $3
		ORDER BY next_charge_at`

	rows, err := r.pool.Query(ctx, query,
		domain.ContractStatusActive, domain.ContractStatusReturnPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list due contracts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due contract id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due contract ids: %w", err)
	}
	return ids, nil
}

// GetDueForUpdate re-checks the due predicate under a row lock. SKIP LOCKED
// makes a row held by a concurrent run or lifecycle transition look absent,
// which callers must treat as "skip this contract".
func (r *ContractRepo) GetDueForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (*domain.RentalContract, error) {
	query := `SELECT ` + contractColumns + ` FROM rental_contracts
		WHERE id = $1 AND status IN ($2, $3) AND next_charge_at IS NOT NULL AND next_charge_at <= $4
		FOR UPDATE SKIP LOCKED`

	return r.scanContract(tx.QueryRow(ctx, query,
		id, domain.ContractStatusActive, domain.ContractStatusReturnPending, now,
	))
}

func (r *ContractRepo) scanContract(row pgx.Row) (*domain.RentalContract, error) {
	c := &domain.RentalContract{}
	err := row.Scan(
		&c.ID, &c.BookID, &c.OwnerID, &c.BorrowerID, &c.Status,
		&c.DailyPrice, &c.LateDailyPrice, &c.NewBookPriceCap,
		&c.StartDate, &c.EndDate, &c.NextChargeAt, &c.TotalCharged,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan contract: %w", err)
	}
	return c, nil
}

func (r *ContractRepo) scanContractRow(rows pgx.Rows) (*domain.RentalContract, error) {
	c := &domain.RentalContract{}
	err := rows.Scan(
		&c.ID, &c.BookID, &c.OwnerID, &c.BorrowerID, &c.Status,
		&c.DailyPrice, &c.LateDailyPrice, &c.NewBookPriceCap,
		&c.StartDate, &c.EndDate, &c.NextChargeAt, &c.TotalCharged,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan contract row: %w", err)
	}
	return c, nil
}
