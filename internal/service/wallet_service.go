package service

import (
	"context"
	"fmt"
	"time"

	"book-rental-engine/internal/core/domain"
	"book-rental-engine/internal/core/ports"
	"book-rental-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
	}
}

// GetBalance returns the user's balance; a user without a wallet has zero.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, nil
	}
	return wallet.Balance, nil
}

// Topup adds funds to the user's wallet, creating it on first use.
func (s *WalletServiceImpl) Topup(ctx context.Context, userID uuid.UUID, amount int64) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		wallet = domain.NewWallet(userID, now)
		if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
	}

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, wallet.Balance+amount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	entry := &domain.WalletTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		WalletID:    wallet.ID,
		Amount:      amount,
		Type:        domain.TransactionTypeTopup,
		Description: "wallet topup",
		CreatedAt:   now,
	}
	if err := s.txRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create topup entry: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Msg("wallet topped up")

	return entry, nil
}

// History lists the user's ledger entries, newest first.
func (s *WalletServiceImpl) History(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	entries, total, err := s.txRepo.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return entries, total, nil
}
