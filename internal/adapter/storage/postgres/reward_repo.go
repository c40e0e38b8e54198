package postgres

import (
	"context"
	"fmt"

	"book-rental-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RewardRepo implements ports.RewardRepository. eligible_books is stored as
// a uuid[] column; claims are immutable once written.
type RewardRepo struct {
	pool Pool
}

// NewRewardRepo creates a new RewardRepo.
func NewRewardRepo(pool Pool) *RewardRepo {
	return &RewardRepo{pool: pool}
}

// Create inserts a new reward claim within a database transaction.
func (r *RewardRepo) Create(ctx context.Context, tx pgx.Tx, claim *domain.RewardClaim) error {
	query := `INSERT INTO reward_claims (id, user_id, eligible_books, total_reward_value, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		claim.ID, claim.UserID, claim.EligibleBooks,
		claim.TotalRewardValue, claim.Status, claim.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reward claim: %w", err)
	}
	return nil
}

// ClaimedBookIDs returns every book id referenced by any of the user's
// existing claims.
func (r *RewardRepo) ClaimedBookIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT DISTINCT unnest(eligible_books) FROM reward_claims WHERE user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list claimed book ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed book id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed book ids: %w", err)
	}
	return ids, nil
}

// ListByUser fetches the user's reward claims, newest first.
func (r *RewardRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.RewardClaim, error) {
	query := `SELECT id, user_id, eligible_books, total_reward_value, status, created_at
		FROM reward_claims WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list reward claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.RewardClaim
	for rows.Next() {
		c := domain.RewardClaim{}
		err := rows.Scan(&c.ID, &c.UserID, &c.EligibleBooks, &c.TotalRewardValue, &c.Status, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reward claim: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward claims: %w", err)
	}
	return claims, nil
}
