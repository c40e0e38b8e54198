package postgres

import (
	"context"
	"errors"
	"fmt"

	"book-rental-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const handshakeColumns = `id, subject_id, kind, party_a, party_b, party_a_confirmed, party_b_confirmed,
	expires_at, completed_at, created_at, updated_at`

// HandshakeRepo implements ports.HandshakeRepository.
type HandshakeRepo struct {
	pool Pool
}

// NewHandshakeRepo creates a new HandshakeRepo.
func NewHandshakeRepo(pool Pool) *HandshakeRepo {
	return &HandshakeRepo{pool: pool}
}

// Create inserts a new handshake within a database transaction.
func (r *HandshakeRepo) Create(ctx context.Context, tx pgx.Tx, h *domain.Handshake) error {
	query := `INSERT INTO handshakes (` + handshakeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		h.ID, h.SubjectID, h.Kind, h.PartyA, h.PartyB,
		h.PartyAConfirmed, h.PartyBConfirmed,
		h.ExpiresAt, h.CompletedAt, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert handshake: %w", err)
	}
	return nil
}

// GetByID fetches a handshake by UUID.
func (r *HandshakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Handshake, error) {
	query := `SELECT ` + handshakeColumns + ` FROM handshakes WHERE id = $1`
	return r.scanHandshake(r.pool.QueryRow(ctx, query, id))
}

// GetLatestBySubject fetches the most recent handshake for a subject and
// kind, expired or not (non-locking read).
func (r *HandshakeRepo) GetLatestBySubject(ctx context.Context, subjectID uuid.UUID, kind domain.HandshakeKind) (*domain.Handshake, error) {
	query := `SELECT ` + handshakeColumns + ` FROM handshakes
		WHERE subject_id = $1 AND kind = $2 ORDER BY created_at DESC LIMIT 1`
	return r.scanHandshake(r.pool.QueryRow(ctx, query, subjectID, kind))
}

// GetLatestBySubjectForUpdate is the locking variant used by confirm calls.
// This MUST be called within a transaction.
func (r *HandshakeRepo) GetLatestBySubjectForUpdate(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID, kind domain.HandshakeKind) (*domain.Handshake, error) {
	query := `SELECT ` + handshakeColumns + ` FROM handshakes
		WHERE subject_id = $1 AND kind = $2 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`
	return r.scanHandshake(tx.QueryRow(ctx, query, subjectID, kind))
}

// Update persists a handshake's confirmation flags within a transaction.
func (r *HandshakeRepo) Update(ctx context.Context, tx pgx.Tx, h *domain.Handshake) error {
	query := `UPDATE handshakes
		SET party_a_confirmed = $1, party_b_confirmed = $2, completed_at = $3, updated_at = $4
		WHERE id = $5`

	tag, err := tx.Exec(ctx, query,
		h.PartyAConfirmed, h.PartyBConfirmed, h.CompletedAt, h.UpdatedAt, h.ID,
	)
	if err != nil {
		return fmt.Errorf("update handshake: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("handshake not found: %s", h.ID)
	}
	return nil
}

func (r *HandshakeRepo) scanHandshake(row pgx.Row) (*domain.Handshake, error) {
	h := &domain.Handshake{}
	err := row.Scan(
		&h.ID, &h.SubjectID, &h.Kind, &h.PartyA, &h.PartyB,
		&h.PartyAConfirmed, &h.PartyBConfirmed,
		&h.ExpiresAt, &h.CompletedAt, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan handshake: %w", err)
	}
	return h, nil
}
