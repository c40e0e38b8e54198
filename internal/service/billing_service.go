package service

import (
	"context"
	"fmt"
	"time"

	"book-rental-engine/internal/core/domain"
	"book-rental-engine/internal/core/ports"
	"book-rental-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// BillingServiceImpl implements ports.BillingService.
//
// The charge computation itself is pure (domain.PlanCharge); this service
// is the I/O shell: it selects due contracts, applies each plan in its own
// database transaction and isolates per-contract failures. Idempotency
// holds because next_charge_at advances in the same transaction as the
// ledger write — a contract whose next_charge_at is in the future is never
// reselected.
type BillingServiceImpl struct {
	contractRepo ports.ContractRepository
	walletRepo   ports.WalletRepository
	txRepo       ports.TransactionRepository
	transactor   ports.DBTransactor
	events       ports.EventPublisher
	runLock      ports.RunLock
	chargePeriod time.Duration
	leaseTTL     time.Duration
	log          zerolog.Logger
}

// NewBillingService creates a new BillingServiceImpl.
func NewBillingService(
	contractRepo ports.ContractRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	runLock ports.RunLock,
	chargePeriod time.Duration,
	leaseTTL time.Duration,
	log zerolog.Logger,
) *BillingServiceImpl {
	return &BillingServiceImpl{
		contractRepo: contractRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		transactor:   transactor,
		events:       events,
		runLock:      runLock,
		chargePeriod: chargePeriod,
		leaseTTL:     leaseTTL,
		log:          log,
	}
}

// ProcessDueContracts charges every due contract once. Safe to re-invoke:
// re-running before next_charge_at has advanced cannot double-charge.
func (s *BillingServiceImpl) ProcessDueContracts(ctx context.Context) (*ports.RunReport, error) {
	acquired, err := s.runLock.Acquire(ctx, s.leaseTTL)
	if err != nil {
		// The row locks below still guarantee correctness; the lease only
		// avoids wasted work, so a lock-store outage must not stop billing.
		s.log.Warn().Err(err).Msg("run lock unavailable, proceeding without lease")
	} else if !acquired {
		s.log.Info().Msg("billing run already in progress, skipping")
		return &ports.RunReport{}, nil
	} else {
		defer func() {
			if err := s.runLock.Release(ctx); err != nil {
				s.log.Warn().Err(err).Msg("failed to release run lease")
			}
		}()
	}

	now := time.Now().UTC()
	ids, err := s.contractRepo.ListDueIDs(ctx, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list due contracts: %w", err))
	}

	report := &ports.RunReport{Selected: len(ids)}
	for _, id := range ids {
		if err := s.processContract(ctx, id, report); err != nil {
			// Isolated: one failing contract never blocks the batch.
			report.Failed++
			s.log.Error().Err(err).Str("contract_id", id.String()).Msg("charge failed")
		}
	}

	s.log.Info().
		Int("selected", report.Selected).
		Int("charged", report.Charged).
		Int("force_closed", report.ForceClosed).
		Int("insufficient_funds", report.InsufficientFunds).
		Int("failed", report.Failed).
		Msg("billing run finished")

	return report, nil
}

func (s *BillingServiceImpl) processContract(ctx context.Context, id uuid.UUID, report *ports.RunReport) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	// Re-check the due predicate under the row lock: a concurrent return or
	// charge may have finalized or advanced the contract since selection.
	contract, err := s.contractRepo.GetDueForUpdate(ctx, tx, id, now)
	if err != nil {
		return fmt.Errorf("lock contract: %w", err)
	}
	if contract == nil {
		report.SkippedUnavailable++
		return nil
	}

	plan := domain.PlanCharge(contract, now, s.chargePeriod)
	if !plan.Due {
		report.SkippedUnavailable++
		return nil
	}

	if plan.ForceClose && plan.Amount == 0 {
		// Cap already reached: close without charging.
		s.forceClose(contract, now)
		if err := s.contractRepo.Update(ctx, tx, contract); err != nil {
			return fmt.Errorf("force close contract: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit force close: %w", err)
		}
		report.ForceClosed++
		s.publishContract(ctx, domain.EventContractForceClose, contract, contract.BorrowerID, 0)
		return nil
	}

	borrowerWallet, ownerWallet, err := s.lockWallets(ctx, tx, contract, now)
	if err != nil {
		return err
	}

	if borrowerWallet == nil || !borrowerWallet.CanDebit(plan.Amount) {
		// Recoverable: next_charge_at stays put so the contract remains due
		// and is retried next run.
		report.InsufficientFunds++
		s.publishContract(ctx, domain.EventChargeFailed, contract, contract.BorrowerID, plan.Amount)
		s.log.Info().
			Str("contract_id", contract.ID.String()).
			Int64("charge", plan.Amount).
			Msg("charge skipped, insufficient funds")
		return nil
	}

	if err := s.walletRepo.UpdateBalance(ctx, tx, borrowerWallet.ID, borrowerWallet.Balance-plan.Amount); err != nil {
		return fmt.Errorf("debit borrower: %w", err)
	}
	if err := s.walletRepo.UpdateBalance(ctx, tx, ownerWallet.ID, ownerWallet.Balance+plan.Amount); err != nil {
		return fmt.Errorf("credit owner: %w", err)
	}

	// Double-entry: two rows, opposite signs, equal magnitude.
	debit := &domain.WalletTransaction{
		ID:          uuid.New(),
		UserID:      contract.BorrowerID,
		WalletID:    borrowerWallet.ID,
		Amount:      -plan.Amount,
		Type:        domain.TransactionTypeRentalCharge,
		ContractID:  &contract.ID,
		Description: "rental charge",
		CreatedAt:   now,
	}
	credit := &domain.WalletTransaction{
		ID:          uuid.New(),
		UserID:      contract.OwnerID,
		WalletID:    ownerWallet.ID,
		Amount:      plan.Amount,
		Type:        domain.TransactionTypeRentalIncome,
		ContractID:  &contract.ID,
		Description: "rental income",
		CreatedAt:   now,
	}
	if err := s.txRepo.Create(ctx, tx, debit); err != nil {
		return fmt.Errorf("create debit entry: %w", err)
	}
	if err := s.txRepo.Create(ctx, tx, credit); err != nil {
		return fmt.Errorf("create credit entry: %w", err)
	}

	contract.TotalCharged = plan.NewTotalCharged
	contract.NextChargeAt = plan.NextChargeAt
	contract.UpdatedAt = now
	if plan.ForceClose {
		s.forceClose(contract, now)
	}
	if err := s.contractRepo.Update(ctx, tx, contract); err != nil {
		return fmt.Errorf("update contract: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit charge: %w", err)
	}

	report.Charged++
	if plan.ForceClose {
		report.ForceClosed++
		s.publishContract(ctx, domain.EventContractForceClose, contract, contract.BorrowerID, plan.Amount)
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Int64("amount", plan.Amount).
		Int64("total_charged", contract.TotalCharged).
		Bool("force_closed", plan.ForceClose).
		Msg("contract charged")

	return nil
}

// lockWallets locks both party wallets in a stable order so concurrent
// charges touching the same users cannot deadlock. The owner wallet is
// created empty on first income.
func (s *BillingServiceImpl) lockWallets(ctx context.Context, tx pgx.Tx, c *domain.RentalContract, now time.Time) (borrower, owner *domain.Wallet, err error) {
	first, second := c.BorrowerID, c.OwnerID
	if second.String() < first.String() {
		first, second = second, first
	}

	wallets := map[uuid.UUID]*domain.Wallet{}
	for _, userID := range []uuid.UUID{first, second} {
		w, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("lock wallet: %w", err)
		}
		wallets[userID] = w
	}

	owner = wallets[c.OwnerID]
	if owner == nil {
		owner = domain.NewWallet(c.OwnerID, now)
		if err := s.walletRepo.Create(ctx, tx, owner); err != nil {
			return nil, nil, fmt.Errorf("create owner wallet: %w", err)
		}
	}
	return wallets[c.BorrowerID], owner, nil
}

func (s *BillingServiceImpl) forceClose(c *domain.RentalContract, now time.Time) {
	c.Status = domain.ContractStatusForceClosed
	c.EndDate = &now
	c.UpdatedAt = now
}

func (s *BillingServiceImpl) publishContract(ctx context.Context, eventType domain.EventType, c *domain.RentalContract, userID uuid.UUID, amount int64) {
	ev := domain.NewEvent(eventType, time.Now().UTC())
	ev.ContractID = &c.ID
	ev.UserID = &userID
	ev.Amount = amount
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", string(eventType)).Msg("failed to publish event")
	}
}
