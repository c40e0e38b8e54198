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

// RewardServiceImpl implements ports.RewardService.
//
// A book qualifies once its cumulative rental income reaches its list
// price (the new-book price recorded on its contracts). Existing claims
// suppress re-qualification, so the evaluation is a no-op on repeat.
type RewardServiceImpl struct {
	rewardRepo ports.RewardRepository
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	events     ports.EventPublisher
	log        zerolog.Logger
}

// NewRewardService creates a new RewardServiceImpl.
func NewRewardService(
	rewardRepo ports.RewardRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	log zerolog.Logger,
) *RewardServiceImpl {
	return &RewardServiceImpl{
		rewardRepo: rewardRepo,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		events:     events,
		log:        log,
	}
}

// EvaluateRewards bundles every newly qualifying book of the owner into one
// claim and credits its total value as a single reward transaction.
func (s *RewardServiceImpl) EvaluateRewards(ctx context.Context, ownerID uuid.UUID) (*domain.RewardClaim, error) {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	// The wallet lock serializes concurrent evaluations for the same user;
	// the claimed-books read below then sees any claim a racing evaluation
	// committed first.
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		wallet = domain.NewWallet(ownerID, now)
		if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
	}

	revenues, err := s.txRepo.RevenueByBook(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("aggregate revenue: %w", err))
	}

	claimedIDs, err := s.rewardRepo.ClaimedBookIDs(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list claimed books: %w", err))
	}
	claimed := make(map[uuid.UUID]struct{}, len(claimedIDs))
	for _, id := range claimedIDs {
		claimed[id] = struct{}{}
	}

	var eligible []uuid.UUID
	var total int64
	for _, rev := range revenues {
		if _, done := claimed[rev.BookID]; done {
			continue
		}
		if rev.Qualifies() {
			eligible = append(eligible, rev.BookID)
			total += rev.ListPrice
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	claim := &domain.RewardClaim{
		ID:               uuid.New(),
		UserID:           ownerID,
		EligibleBooks:    eligible,
		TotalRewardValue: total,
		Status:           domain.RewardClaimStatusCredited,
		CreatedAt:        now,
	}
	if err := s.rewardRepo.Create(ctx, tx, claim); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create claim: %w", err))
	}

	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, wallet.Balance+total); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit reward: %w", err))
	}

	entry := &domain.WalletTransaction{
		ID:          uuid.New(),
		UserID:      ownerID,
		WalletID:    wallet.ID,
		Amount:      total,
		Type:        domain.TransactionTypeReward,
		Description: fmt.Sprintf("reward for %d book(s)", len(eligible)),
		CreatedAt:   now,
	}
	if err := s.txRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create reward entry: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	ev := domain.NewEvent(domain.EventRewardIssued, now)
	ev.UserID = &ownerID
	ev.Amount = total
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish reward event")
	}

	s.log.Info().
		Str("user_id", ownerID.String()).
		Int("books", len(eligible)).
		Int64("total_reward", total).
		Msg("reward claim issued")

	return claim, nil
}

// ListClaims returns the user's reward claims.
func (s *RewardServiceImpl) ListClaims(ctx context.Context, userID uuid.UUID) ([]domain.RewardClaim, error) {
	claims, err := s.rewardRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list claims: %w", err))
	}
	return claims, nil
}
