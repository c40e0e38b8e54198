package domain

import (
	"time"

	"github.com/google/uuid"
)

// RewardClaimStatus represents the state of a reward claim.
type RewardClaimStatus string

const (
	RewardClaimStatusPending  RewardClaimStatus = "pending"
	RewardClaimStatusCredited RewardClaimStatus = "credited"
)

// RewardClaim bundles the books whose cumulative rental revenue reached the
// book's list price. One claim per qualifying batch per user; immutable once
// credited. A book referenced by any claim never re-qualifies.
type RewardClaim struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	EligibleBooks    []uuid.UUID       `json:"eligible_books"`
	TotalRewardValue int64             `json:"total_reward_value"`
	Status           RewardClaimStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}

// BookRevenue is the per-book aggregation the reward evaluator consumes:
// cumulative rental income from completed contracts against the book's
// list price (the new-book price recorded on its contracts).
type BookRevenue struct {
	BookID    uuid.UUID `json:"book_id"`
	Revenue   int64     `json:"revenue"`
	ListPrice int64     `json:"list_price"`
}

// Qualifies reports whether cumulative revenue has reached the list price.
func (b BookRevenue) Qualifies() bool {
	return b.ListPrice > 0 && b.Revenue >= b.ListPrice
}
