package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's spendable balance in the smallest currency unit.
// One wallet per user, shared by every contract the user participates in.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet creates an empty wallet for a user.
func NewWallet(userID uuid.UUID, now time.Time) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanDebit reports whether the wallet covers a debit of the given amount.
// A debit that would drive the balance negative is always rejected.
func (w *Wallet) CanDebit(amount int64) bool {
	return amount > 0 && w.Balance >= amount
}
