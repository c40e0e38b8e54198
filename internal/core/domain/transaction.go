package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	// TransactionTypeRentalCharge is the borrower-side debit of a daily charge.
	TransactionTypeRentalCharge TransactionType = "RENTAL_CHARGE"
	// TransactionTypeRentalIncome is the owner-side credit of a daily charge.
	TransactionTypeRentalIncome TransactionType = "RENTAL_INCOME"
	TransactionTypeTopup        TransactionType = "TOPUP"
	TransactionTypeReward       TransactionType = "REWARD"
)

// WalletTransaction is an immutable, append-only ledger entry.
// Amount is signed: debits are negative, credits positive. Every contract
// charge produces exactly two entries with opposite signs and equal
// magnitude, written atomically with both balance updates.
type WalletTransaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	Amount      int64           `json:"amount"`
	Type        TransactionType `json:"type"`
	ContractID  *uuid.UUID      `json:"contract_id,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsCredit reports whether the entry adds funds to the wallet.
func (t *WalletTransaction) IsCredit() bool {
	return t.Amount > 0
}
