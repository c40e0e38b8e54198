package dto

import (
	"github.com/google/uuid"

	"book-rental-engine/internal/core/domain"
)

// CreateContractRequest is the request body for opening a rental contract.
// The authenticated caller becomes the borrower; pricing fields come from
// the listing the marketplace resolved before calling the engine.
type CreateContractRequest struct {
	BookID          uuid.UUID `json:"book_id" binding:"required"`
	OwnerID         uuid.UUID `json:"owner_id" binding:"required"`
	DailyPrice      int64     `json:"daily_price" binding:"required,gt=0"`
	LateDailyPrice  *int64    `json:"late_daily_price,omitempty"`
	NewBookPriceCap int64     `json:"new_book_price_cap" binding:"required,gt=0"`
}

// TopupRequest is the request body for a wallet topup.
type TopupRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// TransactionListResponse wraps a paginated ledger history.
type TransactionListResponse struct {
	Items      []domain.WalletTransaction `json:"items"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"page_size"`
	TotalPages int                        `json:"total_pages"`
}
