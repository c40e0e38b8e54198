package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a notification-worthy occurrence. The engine only emits
// events; delivery is the notification collaborator's job.
type EventType string

const (
	EventContractActivated  EventType = "contract.activated"
	EventContractForceClose EventType = "contract.force_closed"
	EventChargeFailed       EventType = "charge.failed_insufficient_funds"
	EventRewardIssued       EventType = "reward.issued"
)

// Event is the payload published for subscribers.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	Type       EventType  `json:"type"`
	ContractID *uuid.UUID `json:"contract_id,omitempty"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Amount     int64      `json:"amount,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewEvent creates an event stamped with a fresh ID.
func NewEvent(eventType EventType, now time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: now,
	}
}
