package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContractStatus represents the lifecycle state of a rental contract.
type ContractStatus string

const (
	ContractStatusPending       ContractStatus = "PENDING"
	ContractStatusActive        ContractStatus = "ACTIVE"
	ContractStatusReturnPending ContractStatus = "RETURN_PENDING"
	ContractStatusReturned      ContractStatus = "RETURNED"
	ContractStatusForceClosed   ContractStatus = "FORCE_CLOSED"
	ContractStatusExpired       ContractStatus = "EXPIRED"
)

// contractTransitions is the closed transition table. Anything not listed
// here is an invalid transition.
var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusPending:       {ContractStatusActive, ContractStatusExpired, ContractStatusForceClosed},
	ContractStatusActive:        {ContractStatusReturnPending, ContractStatusForceClosed},
	ContractStatusReturnPending: {ContractStatusReturned, ContractStatusForceClosed},
}

// CanTransitionTo reports whether moving to next is allowed from s.
func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	for _, allowed := range contractTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions or charges are possible.
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusReturned || s == ContractStatusForceClosed || s == ContractStatusExpired
}

// Chargeable reports whether the billing scheduler may select this status.
func (s ContractStatus) Chargeable() bool {
	return s == ContractStatusActive || s == ContractStatusReturnPending
}

// RentalContract is the aggregate root for a single rental between an owner
// and a borrower. All monetary fields are in the smallest currency unit.
type RentalContract struct {
	ID              uuid.UUID      `json:"id"`
	BookID          uuid.UUID      `json:"book_id"`
	OwnerID         uuid.UUID      `json:"owner_id"`
	BorrowerID      uuid.UUID      `json:"borrower_id"`
	Status          ContractStatus `json:"status"`
	DailyPrice      int64          `json:"daily_price"`
	LateDailyPrice  *int64         `json:"late_daily_price,omitempty"`
	NewBookPriceCap int64          `json:"new_book_price_cap"`
	StartDate       *time.Time     `json:"start_date,omitempty"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	NextChargeAt    *time.Time     `json:"next_charge_at,omitempty"`
	TotalCharged    int64          `json:"total_charged"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsParty reports whether userID is the owner or the borrower.
func (c *RentalContract) IsParty(userID uuid.UUID) bool {
	return userID == c.OwnerID || userID == c.BorrowerID
}

// ChargeRate returns the per-period rate for the current status. Once a
// return has been requested the late rate applies, falling back to the
// regular daily price when no late rate was agreed.
func (c *RentalContract) ChargeRate() int64 {
	if c.Status == ContractStatusReturnPending && c.LateDailyPrice != nil {
		return *c.LateDailyPrice
	}
	return c.DailyPrice
}

// RemainingCap returns how much may still be charged before the cap.
func (c *RentalContract) RemainingCap() int64 {
	return c.NewBookPriceCap - c.TotalCharged
}

// ChargePlan is the outcome of the pure billing computation for one contract.
// The scheduler applies it atomically against the ledger store.
type ChargePlan struct {
	// Due is false when the contract must not be charged now (wrong status
	// or next_charge_at still in the future).
	Due bool
	// Amount to move from borrower to owner; zero when only force-closing.
	Amount int64
	// ForceClose indicates the contract reaches (or already reached) the cap
	// and must be closed in the same atomic step.
	ForceClose bool
	// NewTotalCharged is total_charged after applying Amount.
	NewTotalCharged int64
	// NextChargeAt is the advanced charge time; nil when no charge happens.
	NextChargeAt *time.Time
}

// PlanCharge computes the billing decision for a contract at the given
// instant without touching any store. period is the billing granularity.
//
// The cap arithmetic: charge = min(rate, cap - total_charged), and the
// contract force-closes as soon as total_charged reaches the cap, so
// total_charged can never exceed new_book_price_cap.
func PlanCharge(c *RentalContract, now time.Time, period time.Duration) ChargePlan {
	if !c.Status.Chargeable() || c.NextChargeAt == nil || c.NextChargeAt.After(now) {
		return ChargePlan{}
	}

	remaining := c.RemainingCap()
	if remaining <= 0 {
		return ChargePlan{Due: true, ForceClose: true, NewTotalCharged: c.TotalCharged}
	}

	amount := c.ChargeRate()
	if amount > remaining {
		amount = remaining
	}

	next := c.NextChargeAt.Add(period)
	newTotal := c.TotalCharged + amount
	return ChargePlan{
		Due:             true,
		Amount:          amount,
		ForceClose:      newTotal >= c.NewBookPriceCap,
		NewTotalCharged: newTotal,
		NextChargeAt:    &next,
	}
}
