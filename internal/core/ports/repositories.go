package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"book-rental-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, newBalance int64) error
}

// TransactionRepository defines persistence for the append-only ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.WalletTransaction) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	// RevenueByBook aggregates rental income from completed contracts per
	// book owned by the user, paired with the book's recorded list price.
	RevenueByBook(ctx context.Context, ownerID uuid.UUID) ([]domain.BookRevenue, error)
}

// ContractRepository defines persistence operations for rental contracts.
type ContractRepository interface {
	Create(ctx context.Context, contract *domain.RentalContract) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RentalContract, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.RentalContract, error)
	Update(ctx context.Context, tx pgx.Tx, contract *domain.RentalContract) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RentalContract, error)
	// ListDueIDs returns ids of contracts with a chargeable status and
	// next_charge_at <= now. No locks are taken.
	ListDueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// GetDueForUpdate re-checks the due predicate under a row lock with
	// SKIP LOCKED. Returns nil when the row is locked elsewhere or no
	// longer due — both mean the contract must be skipped this run.
	GetDueForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (*domain.RentalContract, error)
}

// HandshakeRepository defines persistence for two-party confirmations.
type HandshakeRepository interface {
	Create(ctx context.Context, tx pgx.Tx, handshake *domain.Handshake) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Handshake, error)
	// GetLatestBySubject returns the most recent handshake for a subject
	// and kind, expired or not. Nil when none exists.
	GetLatestBySubject(ctx context.Context, subjectID uuid.UUID, kind domain.HandshakeKind) (*domain.Handshake, error)
	// GetLatestBySubjectForUpdate is the locking variant used by confirm
	// calls to serialize the read-check-write of the confirmation flags.
	GetLatestBySubjectForUpdate(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID, kind domain.HandshakeKind) (*domain.Handshake, error)
	Update(ctx context.Context, tx pgx.Tx, handshake *domain.Handshake) error
}

// RewardRepository defines persistence for reward claims.
type RewardRepository interface {
	Create(ctx context.Context, tx pgx.Tx, claim *domain.RewardClaim) error
	// ClaimedBookIDs returns every book id referenced by any of the user's
	// existing claims; such books never re-qualify.
	ClaimedBookIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RewardClaim, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
