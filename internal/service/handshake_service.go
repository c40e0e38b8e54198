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

// HandshakeManagerImpl implements ports.HandshakeManager.
//
// All mutations happen on a row locked by GetLatestBySubjectForUpdate so
// that two concurrent confirm calls for the same handshake cannot lose one
// party's flag to a last-write-wins race.
type HandshakeManagerImpl struct {
	hsRepo ports.HandshakeRepository
	ttl    time.Duration
	log    zerolog.Logger
}

// NewHandshakeManager creates a new HandshakeManagerImpl.
func NewHandshakeManager(hsRepo ports.HandshakeRepository, ttl time.Duration, log zerolog.Logger) *HandshakeManagerImpl {
	return &HandshakeManagerImpl{
		hsRepo: hsRepo,
		ttl:    ttl,
		log:    log,
	}
}

// Create opens a handshake for the subject within the caller's transaction.
func (s *HandshakeManagerImpl) Create(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID, kind domain.HandshakeKind, partyA, partyB uuid.UUID) (*domain.Handshake, error) {
	latest, err := s.hsRepo.GetLatestBySubjectForUpdate(ctx, tx, subjectID, kind)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock handshake subject: %w", err))
	}

	now := time.Now().UTC()
	if latest != nil && !latest.BothConfirmed() && !latest.IsExpired(now) {
		return nil, apperror.ErrHandshakeExists()
	}

	h := domain.NewHandshake(subjectID, kind, partyA, partyB, s.ttl, now)
	if err := s.hsRepo.Create(ctx, tx, h); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create handshake: %w", err))
	}

	s.log.Debug().
		Str("handshake_id", h.ID.String()).
		Str("subject_id", subjectID.String()).
		Str("kind", string(kind)).
		Msg("handshake created")

	return h, nil
}

// Confirm records one party's confirmation on the subject's latest handshake.
func (s *HandshakeManagerImpl) Confirm(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID, kind domain.HandshakeKind, party uuid.UUID) (*ports.HandshakeResult, error) {
	h, err := s.hsRepo.GetLatestBySubjectForUpdate(ctx, tx, subjectID, kind)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock handshake: %w", err))
	}
	if h == nil {
		return nil, apperror.ErrNotFound("handshake")
	}
	if !h.IsParty(party) {
		return nil, apperror.ErrNotParty()
	}

	now := time.Now().UTC()
	if h.IsExpired(now) {
		// Terminally expired: no confirmation is ever recorded again.
		return &ports.HandshakeResult{Handshake: h, Expired: true}, nil
	}

	// Re-confirming by the same party is a no-op, not an error.
	if h.ConfirmedBy(party) {
		return &ports.HandshakeResult{Handshake: h, BothConfirmed: h.BothConfirmed()}, nil
	}

	h.Confirm(party, now)
	if err := s.hsRepo.Update(ctx, tx, h); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update handshake: %w", err))
	}

	s.log.Info().
		Str("handshake_id", h.ID.String()).
		Str("party", party.String()).
		Bool("both_confirmed", h.BothConfirmed()).
		Msg("handshake confirmed")

	return &ports.HandshakeResult{Handshake: h, BothConfirmed: h.BothConfirmed()}, nil
}

// GetBySubject returns the latest handshake for a subject, nil if none.
func (s *HandshakeManagerImpl) GetBySubject(ctx context.Context, subjectID uuid.UUID, kind domain.HandshakeKind) (*domain.Handshake, error) {
	h, err := s.hsRepo.GetLatestBySubject(ctx, subjectID, kind)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get handshake: %w", err))
	}
	return h, nil
}
