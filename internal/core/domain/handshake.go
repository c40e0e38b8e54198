package domain

import (
	"time"

	"github.com/google/uuid"
)

// HandshakeKind names the real-world event the two parties attest to.
type HandshakeKind string

const (
	// HandshakeKindAgreement confirms the rental has physically started.
	HandshakeKindAgreement HandshakeKind = "agreement"
	// HandshakeKindReturn confirms the book has been handed back.
	HandshakeKindReturn HandshakeKind = "return"
)

// Handshake is a two-party mutual-confirmation record with an expiry.
// Once expires_at passes with fewer than two confirmations it is terminally
// expired; a fresh handshake must be created to retry. Expiry is checked
// lazily on the next confirm or lifecycle read.
type Handshake struct {
	ID              uuid.UUID     `json:"id"`
	SubjectID       uuid.UUID     `json:"subject_id"`
	Kind            HandshakeKind `json:"kind"`
	PartyA          uuid.UUID     `json:"party_a"`
	PartyB          uuid.UUID     `json:"party_b"`
	PartyAConfirmed bool          `json:"party_a_confirmed"`
	PartyBConfirmed bool          `json:"party_b_confirmed"`
	ExpiresAt       time.Time     `json:"expires_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewHandshake creates an unconfirmed handshake between two parties.
func NewHandshake(subjectID uuid.UUID, kind HandshakeKind, partyA, partyB uuid.UUID, ttl time.Duration, now time.Time) *Handshake {
	return &Handshake{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Kind:      kind,
		PartyA:    partyA,
		PartyB:    partyB,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsExpired reports whether the handshake can no longer be confirmed.
// A completed handshake never expires.
func (h *Handshake) IsExpired(now time.Time) bool {
	return !h.BothConfirmed() && now.After(h.ExpiresAt)
}

// IsParty reports whether userID is one of the two named parties.
func (h *Handshake) IsParty(userID uuid.UUID) bool {
	return userID == h.PartyA || userID == h.PartyB
}

// ConfirmedBy reports whether the given party has already confirmed.
func (h *Handshake) ConfirmedBy(userID uuid.UUID) bool {
	switch userID {
	case h.PartyA:
		return h.PartyAConfirmed
	case h.PartyB:
		return h.PartyBConfirmed
	}
	return false
}

// Confirm records the party's confirmation. Re-confirming by the same party
// is a no-op. The caller must hold the row lock and have checked expiry.
func (h *Handshake) Confirm(userID uuid.UUID, now time.Time) {
	switch userID {
	case h.PartyA:
		h.PartyAConfirmed = true
	case h.PartyB:
		h.PartyBConfirmed = true
	default:
		return
	}
	h.UpdatedAt = now
	if h.BothConfirmed() && h.CompletedAt == nil {
		h.CompletedAt = &now
	}
}

// BothConfirmed is true only when both distinct party flags are set.
func (h *Handshake) BothConfirmed() bool {
	return h.PartyAConfirmed && h.PartyBConfirmed
}
