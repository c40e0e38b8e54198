package postgres

import (
	"context"
	"testing"
	"time"

	"book-rental-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewardRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRewardRepo(mock)
	claim := &domain.RewardClaim{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		EligibleBooks:    []uuid.UUID{uuid.New(), uuid.New()},
		TotalRewardValue: 8000,
		Status:           domain.RewardClaimStatusCredited,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reward_claims").
		WithArgs(claim.ID, claim.UserID, claim.EligibleBooks, claim.TotalRewardValue, claim.Status, claim.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, claim)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRepo_ClaimedBookIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRewardRepo(mock)
	userID := uuid.New()
	bookA, bookB := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT DISTINCT unnest").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"unnest"}).AddRow(bookA).AddRow(bookB))

	ids, err := repo.ClaimedBookIDs(context.Background(), userID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{bookA, bookB}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRepo_ClaimedBookIDs_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRewardRepo(mock)
	userID := uuid.New()

	mock.ExpectQuery("SELECT DISTINCT unnest").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"unnest"}))

	ids, err := repo.ClaimedBookIDs(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRewardRepo(mock)
	userID := uuid.New()
	books := []uuid.UUID{uuid.New()}
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM reward_claims WHERE user_id").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "eligible_books", "total_reward_value", "status", "created_at"}).
			AddRow(uuid.New(), userID, books, int64(5000), domain.RewardClaimStatusCredited, now))

	claims, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, int64(5000), claims[0].TotalRewardValue)
	assert.Equal(t, books, claims[0].EligibleBooks)
	assert.NoError(t, mock.ExpectationsWereMet())
}
