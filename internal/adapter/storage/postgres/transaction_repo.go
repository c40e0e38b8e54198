package postgres

import (
	"context"
	"fmt"

	"book-rental-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository. The ledger is
// append-only: entries are inserted, never updated or deleted.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (id, user_id, wallet_id, amount, type, contract_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.UserID, t.WalletID, t.Amount, t.Type,
		t.ContractID, t.Description, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// ListByUser fetches a user's ledger entries, newest first, with pagination.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	countQuery := `SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	offset := (page - 1) * pageSize
	dataQuery := `SELECT id, user_id, wallet_id, amount, type, contract_id, description, created_at
		FROM wallet_transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, dataQuery, userID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		t := domain.WalletTransaction{}
		err := rows.Scan(
			&t.ID, &t.UserID, &t.WalletID, &t.Amount, &t.Type,
			&t.ContractID, &t.Description, &t.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan wallet transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate wallet transactions: %w", err)
	}
	return txns, total, nil
}

// RevenueByBook aggregates rental income per book owned by the user.
// Only income from completed contracts counts: an in-flight rental's
// accrued charges must not push a book over its reward threshold. The
// list price is the new-book price cap recorded on the book's contracts
// (the highest one, should relistings have changed it).
func (r *TransactionRepo) RevenueByBook(ctx context.Context, ownerID uuid.UUID) ([]domain.BookRevenue, error) {
	query := `SELECT c.book_id, COALESCE(SUM(t.amount), 0) AS revenue, MAX(c.new_book_price_cap) AS list_price
		FROM wallet_transactions t
		JOIN rental_contracts c ON c.id = t.contract_id
		WHERE t.user_id = $1 AND t.type = $2 AND c.status IN ($3, $4)
		GROUP BY c.book_id`

	rows, err := r.pool.Query(ctx, query,
		ownerID, domain.TransactionTypeRentalIncome,
		domain.ContractStatusReturned, domain.ContractStatusForceClosed,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate revenue by book: %w", err)
	}
	defer rows.Close()

	var revenues []domain.BookRevenue
	for rows.Next() {
		var rev domain.BookRevenue
		if err := rows.Scan(&rev.BookID, &rev.Revenue, &rev.ListPrice); err != nil {
			return nil, fmt.Errorf("scan book revenue: %w", err)
		}
		revenues = append(revenues, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book revenues: %w", err)
	}
	return revenues, nil
}
