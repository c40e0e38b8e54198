package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"book-rental-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TokenVerifier validates bearer tokens minted by the identity provider.
// The engine trusts the provider and never re-verifies identity itself.
type TokenVerifier interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed identity claims.
type TokenClaims struct {
	UserID uuid.UUID
}

// EventPublisher emits engine events for the notification collaborator.
// Publishing is best-effort: failures are logged, never returned to users.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// RunLock serializes billing runs across processes.
type RunLock interface {
	// Acquire returns true when the lease was obtained.
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

// --- Service Ports (Business Logic) ---

// HandshakeResult is the outcome of a confirm call.
type HandshakeResult struct {
	Handshake     *domain.Handshake
	BothConfirmed bool
	Expired       bool
}

// HandshakeManager is the reusable two-party confirmation primitive.
// Methods take a pgx.Tx so callers can compose a confirmation with their
// own state change in one atomic unit.
type HandshakeManager interface {
	// Create opens a handshake for the subject. Fails with HandshakeExists
	// while an unexpired, incomplete handshake exists for (subject, kind).
	Create(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID, kind domain.HandshakeKind, partyA, partyB uuid.UUID) (*domain.Handshake, error)
	// Confirm records one party's confirmation on the subject's latest
	// handshake. Idempotent per party. Returns Expired (with no mutation)
	// once the TTL has passed.
	Confirm(ctx context.Context, tx pgx.Tx, subjectID uuid.UUID, kind domain.HandshakeKind, party uuid.UUID) (*HandshakeResult, error)
	// GetBySubject returns the latest handshake for rendering, nil if none.
	GetBySubject(ctx context.Context, subjectID uuid.UUID, kind domain.HandshakeKind) (*domain.Handshake, error)
}

// CreateContractInput carries the fields the marketplace request flow has
// already resolved from listing data.
type CreateContractInput struct {
	BookID          uuid.UUID
	OwnerID         uuid.UUID
	BorrowerID      uuid.UUID
	DailyPrice      int64
	LateDailyPrice  *int64
	NewBookPriceCap int64
}

// ContractView is a contract plus the per-party confirmation flags of its
// handshakes, for UI rendering.
type ContractView struct {
	Contract          domain.RentalContract `json:"contract"`
	OwnerConfirmed    bool                  `json:"owner_confirmed"`
	BorrowerConfirmed bool                  `json:"borrower_confirmed"`
	OwnerReturnOK     bool                  `json:"owner_return_ok"`
	BorrowerReturnOK  bool                  `json:"borrower_return_ok"`
}

// ContractService owns the rental contract state machine.
type ContractService interface {
	Create(ctx context.Context, input CreateContractInput) (*ContractView, error)
	Get(ctx context.Context, contractID, requester uuid.UUID) (*ContractView, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]ContractView, error)
	// Agree records one party's confirmation that the rental has started.
	Agree(ctx context.Context, contractID, party uuid.UUID) (*ContractView, error)
	// RequestReturn opens the return handshake; valid only from ACTIVE.
	RequestReturn(ctx context.Context, contractID, requester uuid.UUID) (*ContractView, error)
	// AgreeReturn records one party's confirmation that the book is back.
	AgreeReturn(ctx context.Context, contractID, party uuid.UUID) (*ContractView, error)
}

// RunReport aggregates one billing run.
type RunReport struct {
	Selected           int `json:"selected"`
	Charged            int `json:"charged"`
	ForceClosed        int `json:"force_closed"`
	InsufficientFunds  int `json:"insufficient_funds"`
	SkippedUnavailable int `json:"skipped_unavailable"`
	Failed             int `json:"failed"`
}

// BillingService is the idempotent "process due contracts" operation.
type BillingService interface {
	ProcessDueContracts(ctx context.Context) (*RunReport, error)
}

// RewardService evaluates reward eligibility for an owner's books.
type RewardService interface {
	// EvaluateRewards issues at most one claim bundling every newly
	// qualifying book; nil when nothing qualifies. Safe to re-invoke.
	EvaluateRewards(ctx context.Context, ownerID uuid.UUID) (*domain.RewardClaim, error)
	// ListClaims returns the user's claims, newest first.
	ListClaims(ctx context.Context, userID uuid.UUID) ([]domain.RewardClaim, error)
}

// WalletService exposes balance reads, topups and ledger history.
type WalletService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	Topup(ctx context.Context, userID uuid.UUID, amount int64) (*domain.WalletTransaction, error)
	History(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
}
