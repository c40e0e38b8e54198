package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"book-rental-engine/internal/core/domain"
	"book-rental-engine/internal/core/ports/mocks"
	"book-rental-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type handshakeTestDeps struct {
	svc    *HandshakeManagerImpl
	hsRepo *mocks.MockHandshakeRepository
	ctrl   *gomock.Controller
}

func setupHandshakeManager(t *testing.T) *handshakeTestDeps {
	ctrl := gomock.NewController(t)
	d := &handshakeTestDeps{
		hsRepo: mocks.NewMockHandshakeRepository(ctrl),
		ctrl:   ctrl,
	}
	d.svc = NewHandshakeManager(d.hsRepo, 48*time.Hour, zerolog.Nop())
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// ==================== Create Tests ====================

func TestHandshakeManager_Create_Success(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()
	partyA, partyB := uuid.New(), uuid.New()

	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindAgreement).Return(nil, nil)
	d.hsRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	h, err := d.svc.Create(ctx, tx, subjectID, domain.HandshakeKindAgreement, partyA, partyB)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, subjectID, h.SubjectID)
	assert.Equal(t, partyA, h.PartyA)
	assert.Equal(t, partyB, h.PartyB)
	assert.False(t, h.PartyAConfirmed)
	assert.False(t, h.PartyBConfirmed)
	assert.True(t, h.ExpiresAt.After(time.Now()))
}

func TestHandshakeManager_Create_ActiveHandshakeExists(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()

	existing := domain.NewHandshake(subjectID, domain.HandshakeKindReturn, uuid.New(), uuid.New(), 48*time.Hour, time.Now().UTC())
	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindReturn).Return(existing, nil)

	_, err := d.svc.Create(ctx, tx, subjectID, domain.HandshakeKindReturn, existing.PartyA, existing.PartyB)
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "RENT_006", appErr.Code)
}

func TestHandshakeManager_Create_ReplacesExpiredHandshake(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()
	partyA, partyB := uuid.New(), uuid.New()

	stale := domain.NewHandshake(subjectID, domain.HandshakeKindAgreement, partyA, partyB, time.Hour, time.Now().UTC().Add(-2*time.Hour))
	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindAgreement).Return(stale, nil)
	d.hsRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	h, err := d.svc.Create(ctx, tx, subjectID, domain.HandshakeKindAgreement, partyA, partyB)
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, h.ID)
}

// ==================== Confirm Tests ====================

func TestHandshakeManager_Confirm_FirstParty(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()
	partyA, partyB := uuid.New(), uuid.New()

	h := domain.NewHandshake(subjectID, domain.HandshakeKindAgreement, partyA, partyB, 48*time.Hour, time.Now().UTC())
	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindAgreement).Return(h, nil)
	d.hsRepo.EXPECT().Update(ctx, tx, h).Return(nil)

	res, err := d.svc.Confirm(ctx, tx, subjectID, domain.HandshakeKindAgreement, partyA)
	require.NoError(t, err)
	assert.False(t, res.BothConfirmed)
	assert.False(t, res.Expired)
	assert.True(t, res.Handshake.PartyAConfirmed)
	assert.False(t, res.Handshake.PartyBConfirmed)
	assert.Nil(t, res.Handshake.CompletedAt)
}

func TestHandshakeManager_Confirm_SecondPartyCompletes(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()
	partyA, partyB := uuid.New(), uuid.New()

	h := domain.NewHandshake(subjectID, domain.HandshakeKindReturn, partyA, partyB, 48*time.Hour, time.Now().UTC())
	h.PartyAConfirmed = true
	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindReturn).Return(h, nil)
	d.hsRepo.EXPECT().Update(ctx, tx, h).Return(nil)

	res, err := d.svc.Confirm(ctx, tx, subjectID, domain.HandshakeKindReturn, partyB)
	require.NoError(t, err)
	assert.True(t, res.BothConfirmed)
	require.NotNil(t, res.Handshake.CompletedAt)
}

// Re-confirming by the same party changes nothing and is not an error.
func TestHandshakeManager_Confirm_IdempotentPerParty(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()
	partyA, partyB := uuid.New(), uuid.New()

	h := domain.NewHandshake(subjectID, domain.HandshakeKindAgreement, partyA, partyB, 48*time.Hour, time.Now().UTC())
	h.PartyAConfirmed = true
	// No Update expected: the repeat confirm must not touch the store.
	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindAgreement).Return(h, nil)

	res, err := d.svc.Confirm(ctx, tx, subjectID, domain.HandshakeKindAgreement, partyA)
	require.NoError(t, err)
	assert.False(t, res.BothConfirmed)
	assert.True(t, res.Handshake.PartyAConfirmed)
	assert.False(t, res.Handshake.PartyBConfirmed)
}

func TestHandshakeManager_Confirm_NotFound(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()

	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindAgreement).Return(nil, nil)

	_, err := d.svc.Confirm(ctx, tx, subjectID, domain.HandshakeKindAgreement, uuid.New())
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "RENT_001", appErr.Code)
}

func TestHandshakeManager_Confirm_StrangerRejected(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()

	h := domain.NewHandshake(subjectID, domain.HandshakeKindAgreement, uuid.New(), uuid.New(), 48*time.Hour, time.Now().UTC())
	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindAgreement).Return(h, nil)

	_, err := d.svc.Confirm(ctx, tx, subjectID, domain.HandshakeKindAgreement, uuid.New())
	require.Error(t, err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "RENT_007", appErr.Code)
}

// Expiry is terminal: no confirmation is recorded past the TTL.
func TestHandshakeManager_Confirm_Expired(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	subjectID := uuid.New()
	partyA, partyB := uuid.New(), uuid.New()

	h := domain.NewHandshake(subjectID, domain.HandshakeKindReturn, partyA, partyB, time.Hour, time.Now().UTC().Add(-2*time.Hour))
	h.PartyAConfirmed = true
	// No Update expected.
	d.hsRepo.EXPECT().GetLatestBySubjectForUpdate(ctx, tx, subjectID, domain.HandshakeKindReturn).Return(h, nil)

	res, err := d.svc.Confirm(ctx, tx, subjectID, domain.HandshakeKindReturn, partyB)
	require.NoError(t, err)
	assert.True(t, res.Expired)
	assert.False(t, res.BothConfirmed)
	assert.False(t, res.Handshake.PartyBConfirmed)
}

func TestHandshakeManager_GetBySubject_NilWhenNone(t *testing.T) {
	d := setupHandshakeManager(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	subjectID := uuid.New()

	d.hsRepo.EXPECT().GetLatestBySubject(ctx, subjectID, domain.HandshakeKindAgreement).Return(nil, nil)

	h, err := d.svc.GetBySubject(ctx, subjectID, domain.HandshakeKindAgreement)
	require.NoError(t, err)
	assert.Nil(t, h)
}
