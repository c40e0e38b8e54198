package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"book-rental-engine/internal/core/domain"
	"book-rental-engine/internal/core/ports"
	"book-rental-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ContractServiceImpl implements ports.ContractService.
//
// Every transition locks the contract row first, so transitions and
// scheduler charges for the same contract are mutually exclusive.
type ContractServiceImpl struct {
	contractRepo ports.ContractRepository
	hsMgr        ports.HandshakeManager
	transactor   ports.DBTransactor
	events       ports.EventPublisher
	chargePeriod time.Duration
	log          zerolog.Logger
}

// NewContractService creates a new ContractServiceImpl.
func NewContractService(
	contractRepo ports.ContractRepository,
	hsMgr ports.HandshakeManager,
	transactor ports.DBTransactor,
	events ports.EventPublisher,
	chargePeriod time.Duration,
	log zerolog.Logger,
) *ContractServiceImpl {
	return &ContractServiceImpl{
		contractRepo: contractRepo,
		hsMgr:        hsMgr,
		transactor:   transactor,
		events:       events,
		chargePeriod: chargePeriod,
		log:          log,
	}
}

// Create registers a PENDING contract from resolved listing data.
func (s *ContractServiceImpl) Create(ctx context.Context, input ports.CreateContractInput) (*ports.ContractView, error) {
	if input.OwnerID == input.BorrowerID {
		return nil, apperror.ErrSameParty()
	}
	if input.DailyPrice <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if input.LateDailyPrice != nil && *input.LateDailyPrice <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if input.NewBookPriceCap < input.DailyPrice {
		return nil, apperror.Validation("new_book_price_cap must cover at least one daily charge")
	}

	now := time.Now().UTC()
	contract := &domain.RentalContract{
		ID:              uuid.New(),
		BookID:          input.BookID,
		OwnerID:         input.OwnerID,
		BorrowerID:      input.BorrowerID,
		Status:          domain.ContractStatusPending,
		DailyPrice:      input.DailyPrice,
		LateDailyPrice:  input.LateDailyPrice,
		NewBookPriceCap: input.NewBookPriceCap,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.contractRepo.Create(ctx, contract); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create contract: %w", err))
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("book_id", contract.BookID.String()).
		Int64("daily_price", contract.DailyPrice).
		Int64("cap", contract.NewBookPriceCap).
		Msg("rental contract created")

	return &ports.ContractView{Contract: *contract}, nil
}

// Get returns the contract with its confirmation flags; parties only.
func (s *ContractServiceImpl) Get(ctx context.Context, contractID, requester uuid.UUID) (*ports.ContractView, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get contract: %w", err))
	}
	if contract == nil {
		return nil, apperror.ErrNotFound("contract")
	}
	if !contract.IsParty(requester) {
		return nil, apperror.ErrNotParty()
	}
	return s.buildView(ctx, contract)
}

// ListByUser returns every contract the user participates in.
func (s *ContractServiceImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]ports.ContractView, error) {
	contracts, err := s.contractRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list contracts: %w", err))
	}

	views := make([]ports.ContractView, 0, len(contracts))
	for i := range contracts {
		v, err := s.buildView(ctx, &contracts[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// Agree records one party's confirmation that the rental has started.
// When both parties have confirmed, the contract activates and billing
// begins one charge period later.
func (s *ContractServiceImpl) Agree(ctx context.Context, contractID, party uuid.UUID) (*ports.ContractView, error) {
	var activated bool
	var contract *domain.RentalContract

	err := s.withLockedContract(ctx, contractID, func(tx pgx.Tx, c *domain.RentalContract) error {
		contract = c
		if !c.IsParty(party) {
			return apperror.ErrNotParty()
		}
		if c.Status != domain.ContractStatusPending {
			return apperror.ErrInvalidState("contract is not PENDING")
		}

		res, err := s.confirmOrStart(ctx, tx, c, domain.HandshakeKindAgreement, party)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		switch {
		case res.Expired:
			// Agreement never happened in time; the contract lapses.
			c.Status = domain.ContractStatusExpired
			c.UpdatedAt = now
			return s.update(ctx, tx, c)
		case res.BothConfirmed:
			next := now.Add(s.chargePeriod)
			c.Status = domain.ContractStatusActive
			c.StartDate = &now
			c.NextChargeAt = &next
			c.UpdatedAt = now
			activated = true
			return s.update(ctx, tx, c)
		default:
			// One-sided confirmation recorded; nothing else changes.
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if activated {
		s.publish(ctx, domain.EventContractActivated, contract, contract.BorrowerID, 0)
		s.log.Info().Str("contract_id", contract.ID.String()).Msg("contract activated")
	}

	return s.buildView(ctx, contract)
}

// RequestReturn opens the return handshake. The requester's own
// confirmation is recorded immediately; the counterparty completes it via
// AgreeReturn. Billing continues at the late rate while RETURN_PENDING.
func (s *ContractServiceImpl) RequestReturn(ctx context.Context, contractID, requester uuid.UUID) (*ports.ContractView, error) {
	var contract *domain.RentalContract

	err := s.withLockedContract(ctx, contractID, func(tx pgx.Tx, c *domain.RentalContract) error {
		contract = c
		if !c.IsParty(requester) {
			return apperror.ErrNotParty()
		}
		if c.Status != domain.ContractStatusActive {
			return apperror.ErrInvalidState("return can only be requested from ACTIVE")
		}

		if _, err := s.hsMgr.Create(ctx, tx, c.ID, domain.HandshakeKindReturn, c.OwnerID, c.BorrowerID); err != nil {
			return err
		}
		if _, err := s.hsMgr.Confirm(ctx, tx, c.ID, domain.HandshakeKindReturn, requester); err != nil {
			return err
		}

		c.Status = domain.ContractStatusReturnPending
		c.UpdatedAt = time.Now().UTC()
		return s.update(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("requester", requester.String()).
		Msg("return requested")

	return s.buildView(ctx, contract)
}

// AgreeReturn records one party's confirmation that the book is back.
// If the return handshake has expired, a fresh one is opened (the contract
// stays RETURN_PENDING) and Expired is reported to the caller.
func (s *ContractServiceImpl) AgreeReturn(ctx context.Context, contractID, party uuid.UUID) (*ports.ContractView, error) {
	var returned, reopened bool
	var contract *domain.RentalContract

	err := s.withLockedContract(ctx, contractID, func(tx pgx.Tx, c *domain.RentalContract) error {
		contract = c
		if !c.IsParty(party) {
			return apperror.ErrNotParty()
		}
		if c.Status != domain.ContractStatusReturnPending {
			return apperror.ErrInvalidState("contract is not RETURN_PENDING")
		}

		res, err := s.confirmOrStart(ctx, tx, c, domain.HandshakeKindReturn, party)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		switch {
		case res.Expired:
			// The claimed hand-back lapsed; open a fresh handshake so the
			// parties can retry. Contract status is left untouched.
			if _, err := s.hsMgr.Create(ctx, tx, c.ID, domain.HandshakeKindReturn, c.OwnerID, c.BorrowerID); err != nil {
				return err
			}
			reopened = true
			return nil
		case res.BothConfirmed:
			c.Status = domain.ContractStatusReturned
			c.EndDate = &now
			c.UpdatedAt = now
			returned = true
			return s.update(ctx, tx, c)
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if reopened {
		s.log.Info().Str("contract_id", contract.ID.String()).Msg("return handshake expired, fresh one opened")
		return nil, apperror.ErrHandshakeExpired()
	}
	if returned {
		s.log.Info().Str("contract_id", contract.ID.String()).Msg("contract returned, billing stopped")
	}

	return s.buildView(ctx, contract)
}

// confirmOrStart confirms the party on the subject's handshake, creating
// the handshake first if none exists yet (either party may initiate).
func (s *ContractServiceImpl) confirmOrStart(ctx context.Context, tx pgx.Tx, c *domain.RentalContract, kind domain.HandshakeKind, party uuid.UUID) (*ports.HandshakeResult, error) {
	res, err := s.hsMgr.Confirm(ctx, tx, c.ID, kind, party)
	if err == nil {
		return res, nil
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != "RENT_001" {
		return nil, err
	}

	if _, err := s.hsMgr.Create(ctx, tx, c.ID, kind, c.OwnerID, c.BorrowerID); err != nil {
		return nil, err
	}
	return s.hsMgr.Confirm(ctx, tx, c.ID, kind, party)
}

// withLockedContract runs fn with the contract row locked, committing on
// success. A failed transition rolls back and leaves the contract unchanged.
func (s *ContractServiceImpl) withLockedContract(ctx context.Context, contractID uuid.UUID, fn func(tx pgx.Tx, c *domain.RentalContract) error) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	contract, err := s.contractRepo.GetByIDForUpdate(ctx, tx, contractID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock contract: %w", err))
	}
	if contract == nil {
		return apperror.ErrNotFound("contract")
	}

	if err := fn(tx, contract); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *ContractServiceImpl) update(ctx context.Context, tx pgx.Tx, c *domain.RentalContract) error {
	if err := s.contractRepo.Update(ctx, tx, c); err != nil {
		return apperror.InternalError(fmt.Errorf("update contract: %w", err))
	}
	return nil
}

// buildView attaches the per-party confirmation flags from both handshakes.
func (s *ContractServiceImpl) buildView(ctx context.Context, c *domain.RentalContract) (*ports.ContractView, error) {
	view := &ports.ContractView{Contract: *c}

	agreement, err := s.hsMgr.GetBySubject(ctx, c.ID, domain.HandshakeKindAgreement)
	if err != nil {
		return nil, err
	}
	if agreement != nil {
		view.OwnerConfirmed = agreement.ConfirmedBy(c.OwnerID)
		view.BorrowerConfirmed = agreement.ConfirmedBy(c.BorrowerID)
	}

	ret, err := s.hsMgr.GetBySubject(ctx, c.ID, domain.HandshakeKindReturn)
	if err != nil {
		return nil, err
	}
	if ret != nil {
		view.OwnerReturnOK = ret.ConfirmedBy(c.OwnerID)
		view.BorrowerReturnOK = ret.ConfirmedBy(c.BorrowerID)
	}

	return view, nil
}

// publish emits an event best-effort; failures never fail the operation.
func (s *ContractServiceImpl) publish(ctx context.Context, eventType domain.EventType, c *domain.RentalContract, userID uuid.UUID, amount int64) {
	ev := domain.NewEvent(eventType, time.Now().UTC())
	ev.ContractID = &c.ID
	ev.UserID = &userID
	ev.Amount = amount
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", string(eventType)).Msg("failed to publish event")
	}
}
